package nodeindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

const (
	// Each entry: lat (int32) + lon (int32), fixed-point value * 1e7
	entrySize = 8
	// Highest node id the index can address
	maxNodeID = 10_000_000_000
)

// FlatIndex is a memory-mapped node coordinate store. Coordinates live at
// offset = nodeID * 8 in a sparse file, giving O(1) lookup without holding
// node positions on the heap. It satisfies graph.CoordStore, so a graph built
// from a large extract can keep its coordinates here instead of in memory.
type FlatIndex struct {
	file *os.File
	data mmap.MMap
	size int64
}

// Create creates a new flat index file for writing, truncating any
// existing file at the path
func Create(path string) (*FlatIndex, error) {
	size := int64(maxNodeID) * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat node file: %w", err)
	}

	// Sparse on Linux: disk usage grows only with written entries
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate flat node file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap flat node file: %w", err)
	}

	return &FlatIndex{file: f, data: data, size: size}, nil
}

// Open opens an existing flat index read-only
func Open(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flat node file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat flat node file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(info.Size()), mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap flat node file: %w", err)
	}

	return &FlatIndex{file: f, data: data, size: info.Size()}, nil
}

// Put stores a node's coordinates. Out-of-range ids are ignored.
func (x *FlatIndex) Put(id int64, lat, lon float64) {
	if id < 0 || id >= maxNodeID {
		return
	}

	offset := id * entrySize
	binary.LittleEndian.PutUint32(x.data[offset:], uint32(int32(lat*1e7)))
	binary.LittleEndian.PutUint32(x.data[offset+4:], uint32(int32(lon*1e7)))
}

// Get retrieves a node's coordinates. An all-zero entry reads as absent;
// a node at exactly (0, 0) is indistinguishable from an unwritten slot,
// which is acceptable for road data.
func (x *FlatIndex) Get(id int64) (lat, lon float64, ok bool) {
	if id < 0 || id >= maxNodeID {
		return 0, 0, false
	}
	offset := id * entrySize
	if offset+entrySize > x.size {
		return 0, 0, false
	}

	latInt := int32(binary.LittleEndian.Uint32(x.data[offset:]))
	lonInt := int32(binary.LittleEndian.Uint32(x.data[offset+4:]))
	if latInt == 0 && lonInt == 0 {
		return 0, 0, false
	}

	return float64(latInt) / 1e7, float64(lonInt) / 1e7, true
}

// Sync flushes written entries to disk
func (x *FlatIndex) Sync() error {
	return x.data.Flush()
}

// Close unmaps and closes the index file
func (x *FlatIndex) Close() error {
	if err := x.data.Unmap(); err != nil {
		x.file.Close()
		return err
	}
	return x.file.Close()
}
