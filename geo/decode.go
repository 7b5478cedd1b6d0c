package geo

import (
	"encoding/binary"
	"math"
	"net/netip"
	"strings"
)

// decode parses record i's trailer (everything after the net/beF fields)
// into an Entry.
func (t *Table) decode(i int) Entry {
	rec := t.back.RecordAt(i)
	netSize := 4
	if t.ipv6 {
		netSize = 16
	}

	maskByte := rec[netSize]
	off := netSize + 4 // skip mask/beF + 3 reserved bytes
	off += 4           // netVec is read separately by parentOf
	asn := binary.BigEndian.Uint32(rec[off : off+4])
	off += 4
	lat := float32FromBits(binary.BigEndian.Uint32(rec[off : off+4]))
	off += 4
	lng := float32FromBits(binary.BigEndian.Uint32(rec[off : off+4]))
	off += 4
	prec := float32FromBits(binary.BigEndian.Uint32(rec[off : off+4]))
	off += 4
	country := cstr(rec[off : off+3])
	off += 4 // 3 bytes + 1 pad
	county := cstr(rec[off : off+32])
	off += 32
	city := cstr(rec[off : off+32])
	off += 32
	org := cstr(rec[off : off+64])
	off += 64
	address := cstr(rec[off : off+64])
	off += 64
	netID := binary.BigEndian.Uint32(rec[off : off+4])

	e := Entry{
		ASN:         asn,
		Country:     country,
		County:      county,
		City:        city,
		Org:         org,
		Address:     address,
		Lat:         lat,
		Lng:         lng,
		Precision:   prec,
		NetID:       netID,
		IsRangeForm: t.hdr.Mode() == ModeRange,
	}

	if netSize == 4 {
		var a [4]byte
		copy(a[:], rec[0:4])
		e.Net = netip.AddrFrom4(a)
	} else {
		var a [16]byte
		copy(a[:], rec[0:16])
		e.Net = netip.AddrFrom16(a)
	}
	e.PrefixLen = maskByte
	return e
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return strings.TrimRight(string(b[:n]), " ")
}

func float32FromBits(v uint32) float32 {
	return math.Float32frombits(v)
}
