package geo

import (
	"bytes"
	"encoding/binary"
	"math"
)

// RawEntry is the writer-side counterpart of Entry, used by Builder to
// construct subnet files (eg. in tests, or by an out-of-scope compiler tool
// per spec §1's "bsHL4/bsHL6/mrgasn4/6" note).
type RawEntry struct {
	Net       []byte // 4 or 16 bytes, big-endian
	PrefixLen uint8  // CIDR mode: mask bits. Range mode: low bit of beF (0=begin,1=end)
	NetVec    uint32
	ASN       uint32
	Lat, Lng  float32
	Precision float32
	Country   string
	County    string
	City      string
	Org       string
	Address   string
	NetID     uint32
}

// Builder assembles an in-memory subnet file for a fixed address family and
// mode, for use by Load/LoadMmap.
type Builder struct {
	ipv6    bool
	mode    Mode
	version uint32
	rev     uint32
	entries []RawEntry
}

func NewBuilder(ipv6 bool, mode Mode, version, revision uint32) *Builder {
	return &Builder{ipv6: ipv6, mode: mode, version: version, rev: revision}
}

func (b *Builder) Add(e RawEntry) { b.entries = append(b.entries, e) }

// Bytes serializes the header and all entries in the order they were added
// (callers are responsible for adding them pre-sorted by Net, per spec §4.D).
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(b.entries)))
	v := b.version
	if b.mode == ModeRange {
		v |= 0x80000000
	}
	binary.BigEndian.PutUint32(hdr[4:8], v)
	binary.BigEndian.PutUint32(hdr[8:12], b.rev)
	buf.Write(hdr[:])

	netSize := 4
	if b.ipv6 {
		netSize = 16
	}

	for _, e := range b.entries {
		rec := make([]byte, netSize+rangeTrailerSize)
		copy(rec[0:netSize], e.Net)
		rec[netSize] = e.PrefixLen
		off := netSize + 4
		binary.BigEndian.PutUint32(rec[off:off+4], e.NetVec)
		off += 4
		binary.BigEndian.PutUint32(rec[off:off+4], e.ASN)
		off += 4
		binary.BigEndian.PutUint32(rec[off:off+4], float32Bits(e.Lat))
		off += 4
		binary.BigEndian.PutUint32(rec[off:off+4], float32Bits(e.Lng))
		off += 4
		binary.BigEndian.PutUint32(rec[off:off+4], float32Bits(e.Precision))
		off += 4
		copy(rec[off:off+3], e.Country)
		off += 4
		copy(rec[off:off+32], e.County)
		off += 32
		copy(rec[off:off+32], e.City)
		off += 32
		copy(rec[off:off+64], e.Org)
		off += 64
		copy(rec[off:off+64], e.Address)
		off += 64
		binary.BigEndian.PutUint32(rec[off:off+4], e.NetID)

		buf.Write(rec)
	}

	return buf.Bytes()
}

func float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}
