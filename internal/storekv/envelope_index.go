package storekv

// IvfListEntryWire is the wire shape of one inverted-list entry.
type IvfListEntryWire struct {
	Key    uint64
	Vector []float32
}

// IndexPartitionEnvelope is the wire shape of one partition of one vector
// field's IVF-Flat index (§6). Every partition of one field carries
// identical FieldName/Dim/Nlist; fields.Load builds the index shell from
// the schema's field metadata before merging partitions.
type IndexPartitionEnvelope struct {
	FieldName string
	Dim       uint64
	Nlist     uint64
	// CentroidStart is the index, within the field's full centroid set,
	// of this partition's first centroid.
	CentroidStart int
	Centroids     [][]float32        // this partition's slice of the centroid set
	Lists         [][]IvfListEntryWire // one inverted list per centroid in this partition
}

// EncodeIndexPartition serializes and compresses (zstd) one partition.
func EncodeIndexPartition(p IndexPartitionEnvelope) ([]byte, error) {
	e := &encoder{}
	e.str(p.FieldName)
	e.u64(p.Dim)
	e.u64(p.Nlist)
	e.u32(uint32(p.CentroidStart))
	e.u32(uint32(len(p.Centroids)))
	for _, c := range p.Centroids {
		e.floats(c)
	}
	e.u32(uint32(len(p.Lists)))
	for _, lst := range p.Lists {
		e.u32(uint32(len(lst)))
		for _, ent := range lst {
			e.u64(ent.Key)
			e.floats(ent.Vector)
		}
	}
	return compressPartition(e.buf)
}

// DecodeIndexPartition decompresses and deserializes one partition.
func DecodeIndexPartition(raw []byte) (IndexPartitionEnvelope, error) {
	var p IndexPartitionEnvelope
	buf, err := decompressPartition(raw)
	if err != nil {
		return p, err
	}
	d := &decoder{buf: buf}

	name, err := d.str()
	if err != nil {
		return p, err
	}
	p.FieldName = name

	if p.Dim, err = d.u64(); err != nil {
		return p, err
	}
	if p.Nlist, err = d.u64(); err != nil {
		return p, err
	}
	cs, err := d.u32()
	if err != nil {
		return p, err
	}
	p.CentroidStart = int(cs)

	nc, err := d.u32()
	if err != nil {
		return p, err
	}
	p.Centroids = make([][]float32, nc)
	for i := range p.Centroids {
		if p.Centroids[i], err = d.floats(); err != nil {
			return p, err
		}
	}

	nl, err := d.u32()
	if err != nil {
		return p, err
	}
	p.Lists = make([][]IvfListEntryWire, nl)
	for i := range p.Lists {
		n, err := d.u32()
		if err != nil {
			return p, err
		}
		lst := make([]IvfListEntryWire, n)
		for j := range lst {
			key, err := d.u64()
			if err != nil {
				return p, err
			}
			vec, err := d.floats()
			if err != nil {
				return p, err
			}
			lst[j] = IvfListEntryWire{Key: key, Vector: vec}
		}
		p.Lists[i] = lst
	}
	return p, nil
}

// kBaseDim and kCentroidPerPartition are the ad-hoc thresholds from §6's
// partitioning scheme; kept as named constants (not tuned further) so
// PartitionPlan stays deterministic given (nlist, dim), which on-disk
// reproducibility requires.
const (
	kBaseDim             = 128
	kCentroidPerPartition = 1000
)

// PartitionPlan returns the number of partitions and the size of every
// partition but the last (which absorbs the remainder), per §6:
//
//	n_partitions  = ceil((nlist * dim / kBaseDim) / kCentroidPerPartition)
//	partition_size = floor(nlist / n_partitions)
func PartitionPlan(nlist, dim int) (numPartitions, partitionSize int) {
	if nlist == 0 {
		return 0, 0
	}
	weighted := (nlist * dim) / kBaseDim
	if (nlist*dim)%kBaseDim != 0 {
		weighted++
	}
	numPartitions = weighted / kCentroidPerPartition
	if weighted%kCentroidPerPartition != 0 {
		numPartitions++
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	partitionSize = nlist / numPartitions
	if partitionSize < 1 {
		partitionSize = 1
		numPartitions = nlist
	}
	return numPartitions, partitionSize
}

// PartitionBounds returns the [start, end) centroid-index range covered by
// partition p of numPartitions, where the last partition absorbs any
// remainder from integer division.
func PartitionBounds(nlist, numPartitions, partitionSize, p int) (start, end int) {
	start = p * partitionSize
	if p == numPartitions-1 {
		end = nlist
	} else {
		end = start + partitionSize
	}
	return start, end
}
