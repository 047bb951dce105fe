// Package cache owns the on-disk formats of the launcher: the index snapshot
// and the recently used list.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Cache errors.
var (
	ErrNotFound = errors.New("cache file not found")
	ErrCorrupt  = errors.New("cache file corrupt")
	ErrVersion  = errors.New("cache version mismatch")
	ErrLocked   = errors.New("cache file locked by another process")
)

// File names inside the cache directory.
const (
	IndexFileName  = "launch.index"
	RecentFileName = "launch.recent"
)

// maxStringLen bounds a single decoded string so a corrupt length prefix
// cannot trigger a huge allocation.
const maxStringLen = 1 << 16

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// decoder reads uvarint-prefixed values from a byte slice.
type decoder struct {
	data []byte
	err  error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data)
	if n <= 0 {
		d.err = fmt.Errorf("%w: bad length prefix", ErrCorrupt)
		return 0
	}
	d.data = d.data[n:]
	return v
}

func (d *decoder) string() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > maxStringLen || n > uint64(len(d.data)) {
		d.err = fmt.Errorf("%w: truncated string", ErrCorrupt)
		return ""
	}
	s := string(d.data[:n])
	d.data = d.data[n:]
	return s
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.data))
	}
	return nil
}

// EncodeStrings serializes ids as a uvarint count followed by
// uvarint-prefixed strings.
func EncodeStrings(ids []string) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(ids)))
	for _, id := range ids {
		buf = appendString(buf, id)
	}
	return buf
}

// DecodeStrings is the inverse of EncodeStrings.
func DecodeStrings(data []byte) ([]string, error) {
	d := &decoder{data: data}
	count := d.uvarint()
	if d.err == nil && count > uint64(len(data)) {
		return nil, fmt.Errorf("%w: count %d exceeds size", ErrCorrupt, count)
	}

	ids := make([]string, 0, count)
	for i := uint64(0); i < count && d.err == nil; i++ {
		ids = append(ids, d.string())
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return ids, nil
}
