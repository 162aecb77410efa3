package vortexdb

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

const lockFileName = "LOCK"

// instanceLock enforces the single-writer contract of §5 ("storage layer
// is single-writer") with a concrete mechanism: a lock file in the
// storage directory stamped with a random token, created exclusively so a
// second Create/Open in the same directory from another process fails
// fast instead of silently interleaving writes.
type instanceLock struct {
	path string
}

func acquireInstanceLock(dir string) (*instanceLock, error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, vdberrors.InvalidArgumentf("vortexdb: storage directory %q is already locked by another instance", dir)
		}
		return nil, vdberrors.IOf(err, "vortexdb: create lock file")
	}
	defer f.Close()

	token := uuid.New().String()
	if _, err := f.WriteString(token); err != nil {
		_ = os.Remove(path)
		return nil, vdberrors.IOf(err, "vortexdb: write lock token")
	}
	return &instanceLock{path: path}, nil
}

func (l *instanceLock) release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}
