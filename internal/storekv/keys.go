package storekv

import "strconv"

// Key layout (§6): ASCII-prefixed namespaces so a prefix-seek iterator can
// enumerate one kind of value without touching the others.
const (
	schemaKey     = "s:"
	recordPrefix  = "r:"
	indexPrefix   = "i:"
	recordsPrefix = recordPrefix // alias used by callers iterating all records
)

// SchemaKey returns the single key under which the schema envelope lives.
func SchemaKey() []byte { return []byte(schemaKey) }

// RecordKey returns the storage key for record k: "r:<decimal k>".
func RecordKey(k uint64) []byte {
	return []byte(recordPrefix + strconv.FormatUint(k, 10))
}

// RecordsPrefix returns the prefix under which every record key falls, for
// use with Engine.Iterator (full scan, prefetch).
func RecordsPrefix() []byte { return []byte(recordsPrefix) }

// IndexPartitionKey returns the storage key for partition p of field's
// index: "i:<field>:<p>".
func IndexPartitionKey(field string, p int) []byte {
	return []byte(indexPrefix + field + ":" + strconv.Itoa(p))
}

// IndexFieldPrefix returns the prefix under which every partition of
// field's index falls.
func IndexFieldPrefix(field string) []byte {
	return []byte(indexPrefix + field + ":")
}

// ParseRecordKey extracts the decimal key from a "r:<decimal>" storage key.
// Returns false if key does not have that shape.
func ParseRecordKey(key []byte) (uint64, bool) {
	if len(key) <= len(recordPrefix) || string(key[:len(recordPrefix)]) != recordPrefix {
		return 0, false
	}
	v, err := strconv.ParseUint(string(key[len(recordPrefix):]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
