//go:build linux

package geo

import (
	"bufio"
	"os"
	"syscall"
)

// mmapBacking memory-maps a subnet file read-only (spec §4.D "loadable via
// full-read or memory-map"). Adapted from gravwell's ipexist/mmap.go:
// simplified to the read-only, fixed-size case this engine needs -- no
// remap-on-grow, since a subnet file never changes size after loading.
type mmapBacking struct {
	f       *os.File
	full    []byte // the full mmap'd region, needed verbatim by Munmap
	data    []byte // full[headerSize:], where fixed-size records begin
	recSize int
}

// LoadMmap memory-maps a subnet file instead of reading it fully (spec
// §4.D). It validates {version, range-mode} and that the file size exactly
// matches the 16-byte header plus header.Count records (TESTABLE: loader must refuse a mismatch).
func LoadMmap(path string, ipv6 bool, wantVersion uint32, wantMode Mode) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	hdr, err := readHeader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	if hdr.SchemaVersion() != wantVersion || hdr.Mode() != wantMode {
		f.Close()
		return nil, ErrVersionMismatch
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	recSize := recordSize(ipv6)
	wantSize := int64(headerSize) + int64(hdr.Count)*int64(recSize)
	if fi.Size() != wantSize {
		f.Close()
		return nil, ErrCorruptSize
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	_ = syscall.Madvise(data, syscall.MADV_RANDOM)

	return &Table{
		hdr:     hdr,
		ipv6:    ipv6,
		recSize: recSize,
		back: &mmapBacking{
			f:       f,
			full:    data,
			data:    data[headerSize:],
			recSize: recSize,
		},
	}, nil
}

func (m *mmapBacking) RecordAt(i int) []byte {
	return m.data[i*m.recSize : (i+1)*m.recSize]
}
func (m *mmapBacking) Count() int { return len(m.data) / m.recSize }

func (m *mmapBacking) Close() error {
	if m.full == nil {
		return nil
	}
	err := syscall.Munmap(m.full)
	m.full = nil
	m.data = nil
	m.f.Close()
	return err
}
