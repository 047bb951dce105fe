package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/0xADE/ade-launch/internal/indexer"
)

// Index snapshot format constants.
const (
	indexMagic      = "ADLI"
	indexVersionNum = 1
	indexHeaderSize = 10 // magic + uint16 version + uint32 count
)

// IndexFile stores a snapshot of discovered entries so later processes can
// skip discovery. The snapshot is trusted as-is; nothing checks whether the
// source directories changed since it was written.
type IndexFile struct {
	path string
}

// NewIndexFile returns the snapshot stored at path.
func NewIndexFile(path string) *IndexFile {
	return &IndexFile{path: path}
}

// Path returns the snapshot location.
func (f *IndexFile) Path() string {
	return f.path
}

// Save replaces the snapshot atomically.
func (f *IndexFile) Save(entries []indexer.Entry) error {
	buf := make([]byte, indexHeaderSize, indexHeaderSize+len(entries)*32)
	copy(buf, indexMagic)
	binary.LittleEndian.PutUint16(buf[4:6], indexVersionNum)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(entries)))

	for _, entry := range entries {
		buf = appendString(buf, entry.Name)
		buf = appendString(buf, entry.Exec)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// Load reads the snapshot. It returns ErrNotFound if there is none,
// ErrVersion for a snapshot written by another format version and
// ErrCorrupt for anything that does not decode.
func (f *IndexFile) Load() ([]indexer.Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	if len(data) < indexHeaderSize {
		return nil, fmt.Errorf("%w: file too small", ErrCorrupt)
	}
	if string(data[0:4]) != indexMagic {
		return nil, fmt.Errorf("%w: invalid magic", ErrCorrupt)
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != indexVersionNum {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, version, indexVersionNum)
	}

	count := binary.LittleEndian.Uint32(data[6:10])
	body := data[indexHeaderSize:]
	// Every entry takes at least two length bytes
	if uint64(count)*2 > uint64(len(body)) {
		return nil, fmt.Errorf("%w: count %d exceeds size", ErrCorrupt, count)
	}

	d := &decoder{data: body}
	entries := make([]indexer.Entry, 0, count)
	for i := uint32(0); i < count && d.err == nil; i++ {
		name := d.string()
		exec := d.string()
		entries = append(entries, indexer.Entry{Name: name, Exec: exec})
	}
	if err := d.finish(); err != nil {
		return nil, err
	}

	return entries, nil
}
