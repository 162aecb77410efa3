package storekv

import (
	"encoding/binary"
	"sync"
	"syscall"

	"github.com/google/btree"
	"golang.org/x/sys/unix"
)

// posItem is one entry of the in-memory ordered index: storage key ->
// byte offset of its framed record in the data file. Go strings compare
// byte-lexicographically, which matches the ascending-by-key-bytes order
// §6 requires from Iterator, so using string(key) as the btree ordering
// key is sufficient without a custom byte-slice comparator.
type posItem struct {
	key string
	pos int64
}

func (i posItem) Less(other btree.Item) bool { return i.key < other.(posItem).key }

// posIndex is an ordered position index backed by google/btree in memory
// and mirrored to an mmap'd file on disk: entries are appended to the
// mmap region as they're added, a full rewrite happens on deletion, and
// growth extends the file and remaps it. Positions are stored as 8-byte offsets so a data file can exceed
// 4GiB without truncation.
type posIndex struct {
	lock     sync.RWMutex
	mmapLock sync.Mutex

	tree        *btree.BTree
	file        fileHandle
	mmapData    []byte
	writeOffset int
}

// fileHandle is the minimal *os.File surface posIndex needs; kept as an
// interface so tests can swap in a temp file without touching semantics.
type fileHandle interface {
	Fd() uintptr
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

const posIndexInitialSize = 4096

func newPosIndex(f fileHandle) (*posIndex, error) {
	size, err := f.Seek(0, 2)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		size = posIndexInitialSize
		if err := f.Truncate(size); err != nil {
			return nil, err
		}
	}

	mmapData, err := unix.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	idx := &posIndex{
		tree:     btree.New(2),
		file:     f,
		mmapData: mmapData,
	}
	idx.writeOffset = idx.loadFromMmap()
	return idx, nil
}

// entry layout: [keySize u32][pos i64][key bytes]
const posEntryHeaderSize = 4 + 8

func (idx *posIndex) loadFromMmap() int {
	offset := 0
	for offset+posEntryHeaderSize <= len(idx.mmapData) {
		keySize := binary.LittleEndian.Uint32(idx.mmapData[offset : offset+4])
		if keySize == 0 {
			break // unwritten tail
		}
		pos := int64(binary.LittleEndian.Uint64(idx.mmapData[offset+4 : offset+12]))
		offset += posEntryHeaderSize
		if offset+int(keySize) > len(idx.mmapData) {
			break
		}
		key := string(idx.mmapData[offset : offset+int(keySize)])
		offset += int(keySize)
		idx.tree.ReplaceOrInsert(posItem{key: key, pos: pos})
	}
	return offset
}

// Add inserts or overwrites key -> pos in the in-memory tree and appends an
// entry to the mmap'd file.
func (idx *posIndex) Add(key []byte, pos int64) error {
	idx.lock.Lock()
	defer idx.lock.Unlock()
	idx.tree.ReplaceOrInsert(posItem{key: string(key), pos: pos})
	return idx.appendEntry(key, pos)
}

// Get returns the stored offset for key, if present.
func (idx *posIndex) Get(key []byte) (int64, bool) {
	idx.lock.RLock()
	defer idx.lock.RUnlock()
	item := idx.tree.Get(posItem{key: string(key)})
	if item == nil {
		return 0, false
	}
	return item.(posItem).pos, true
}

// Remove deletes key, rewriting the on-disk mirror if it was present.
func (idx *posIndex) Remove(key []byte) error {
	idx.lock.Lock()
	defer idx.lock.Unlock()
	item := idx.tree.Delete(posItem{key: string(key)})
	if item == nil {
		return nil
	}
	return idx.rewrite()
}

// AscendRange calls fn for every key in [lo, hi) in ascending order,
// stopping early if fn returns false. lo inclusive, hi exclusive; for a
// prefix scan use AscendPrefix, which also covers prefixes with no finite
// upper bound.
func (idx *posIndex) AscendRange(lo, hi string, fn func(key string, pos int64) bool) {
	idx.lock.RLock()
	defer idx.lock.RUnlock()
	idx.tree.AscendRange(posItem{key: lo}, posItem{key: hi}, func(i btree.Item) bool {
		it := i.(posItem)
		return fn(it.key, it.pos)
	})
}

// AscendPrefix calls fn for every key with the given prefix, in ascending
// order.
func (idx *posIndex) AscendPrefix(prefix string, fn func(key string, pos int64) bool) {
	hi := prefixUpperBound(prefix)
	if hi == "" {
		idx.lock.RLock()
		defer idx.lock.RUnlock()
		idx.tree.AscendGreaterOrEqual(posItem{key: prefix}, func(i btree.Item) bool {
			it := i.(posItem)
			if len(it.key) < len(prefix) || it.key[:len(prefix)] != prefix {
				return false
			}
			return fn(it.key, it.pos)
		})
		return
	}
	idx.AscendRange(prefix, hi, fn)
}

// prefixUpperBound returns the smallest string strictly greater than every
// string with the given prefix, or "" if prefix is all 0xff bytes (no
// finite upper bound; AscendPrefix falls back to a scan-and-check in that
// case).
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

func (idx *posIndex) rewrite() error {
	if err := unix.Munmap(idx.mmapData); err != nil {
		return err
	}
	if err := idx.file.Truncate(0); err != nil {
		return err
	}
	if err := idx.file.Truncate(posIndexInitialSize); err != nil {
		return err
	}
	mmapData, err := unix.Mmap(int(idx.file.Fd()), 0, posIndexInitialSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return err
	}
	idx.mmapData = mmapData
	idx.writeOffset = 0

	var appendErr error
	idx.tree.Ascend(func(i btree.Item) bool {
		it := i.(posItem)
		if err := idx.appendEntry([]byte(it.key), it.pos); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	if appendErr != nil {
		return appendErr
	}
	return unix.Msync(idx.mmapData, unix.MS_SYNC)
}

func (idx *posIndex) appendEntry(key []byte, pos int64) error {
	entrySize := posEntryHeaderSize + len(key)

	idx.mmapLock.Lock()
	defer idx.mmapLock.Unlock()

	if idx.writeOffset+entrySize > len(idx.mmapData) {
		newSize := int64(len(idx.mmapData)*2 + entrySize + posIndexInitialSize)
		if err := unix.Munmap(idx.mmapData); err != nil {
			return err
		}
		if err := idx.file.Truncate(newSize); err != nil {
			return err
		}
		mmapData, err := unix.Mmap(int(idx.file.Fd()), 0, int(newSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
		if err != nil {
			return err
		}
		idx.mmapData = mmapData
	}

	offset := idx.writeOffset
	binary.LittleEndian.PutUint32(idx.mmapData[offset:offset+4], uint32(len(key)))
	binary.LittleEndian.PutUint64(idx.mmapData[offset+4:offset+12], uint64(pos))
	copy(idx.mmapData[offset+12:offset+12+len(key)], key)
	idx.writeOffset += entrySize

	return unix.Msync(idx.mmapData, unix.MS_SYNC)
}

func (idx *posIndex) Close() error {
	return unix.Munmap(idx.mmapData)
}
