package geo

import (
	"bytes"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCloudflareTable(t *testing.T) *Table {
	t.Helper()
	b := NewBuilder(false, ModeCIDR, 1, 1)
	b.Add(RawEntry{
		Net:       net.ParseIP("1.0.0.0").To4(),
		PrefixLen: 24,
		ASN:       13335,
		Country:   "US",
		Org:       "Cloudflare",
		City:      "San Francisco",
		Lat:       37.77,
		Lng:       -122.41,
	})
	tbl, err := Load(bytes.NewReader(b.Bytes()), false, 1, ModeCIDR)
	require.NoError(t, err)
	return tbl
}

// Scenario S6 (spec §8): 1.0.0.0/24 -> AS13335 Cloudflare, country US.
func TestLookup_CloudflareScenario(t *testing.T) {
	tbl := buildCloudflareTable(t)

	idx, e := tbl.LookupIPv4(net.ParseIP("1.0.0.1"))
	assert.Greater(t, idx, 0)
	assert.Equal(t, uint32(13335), e.ASN)
	assert.Equal(t, "Cloudflare", e.Org)
	assert.Equal(t, "US", e.Country)

	idx, _ = tbl.LookupIPv4(net.ParseIP("1.0.1.1"))
	assert.Equal(t, 0, idx)
}

// TESTABLE PROPERTY #7: lookup is total; result is 0 iff no range covers the IP.
func TestLookup_TotalFunction(t *testing.T) {
	tbl := buildCloudflareTable(t)

	ips := []string{"0.0.0.0", "1.0.0.0", "1.0.0.255", "1.0.1.0", "255.255.255.255", "1.0.0.128"}
	for _, s := range ips {
		idx, e := tbl.LookupIPv4(net.ParseIP(s))
		inRange := s == "1.0.0.0" || s == "1.0.0.255" || s == "1.0.0.128"
		if inRange {
			assert.Greater(t, idx, 0, s)
			assert.Equal(t, uint32(13335), e.ASN, s)
		} else {
			assert.Equal(t, 0, idx, s)
		}
	}
}

// TESTABLE PROPERTY #8: binary search lookup agrees with a linear scan over
// the loaded records, for every record boundary plus a sample of random IPs.
func TestLookup_AgreesWithLinearScan(t *testing.T) {
	b := NewBuilder(false, ModeCIDR, 1, 1)
	nets := []struct {
		base string
		pl   uint8
		asn  uint32
	}{
		{"1.0.0.0", 24, 100},
		{"2.0.0.0", 16, 200},
		{"3.3.0.0", 24, 300},
		{"8.8.8.0", 24, 400},
		{"10.0.0.0", 8, 500},
	}
	for _, n := range nets {
		b.Add(RawEntry{Net: net.ParseIP(n.base).To4(), PrefixLen: n.pl, ASN: n.asn})
	}
	tbl, err := Load(bytes.NewReader(b.Bytes()), false, 1, ModeCIDR)
	require.NoError(t, err)

	linear := func(ip net.IP) uint32 {
		var best uint32
		var bestPL uint8
		for _, n := range nets {
			_, ipnet, _ := net.ParseCIDR(n.base + "/" + itoa(n.pl))
			if ipnet.Contains(ip) && n.pl >= bestPL {
				best = n.asn
				bestPL = n.pl
			}
		}
		return best
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		ip := net.IPv4(byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		want := linear(ip)
		_, e := tbl.LookupIPv4(ip)
		if want == 0 {
			assert.Equal(t, uint32(0), e.ASN, ip.String())
		} else {
			assert.Equal(t, want, e.ASN, ip.String())
		}
	}
}

func TestLoad_RejectsVersionMismatch(t *testing.T) {
	b := NewBuilder(false, ModeCIDR, 1, 1)
	b.Add(RawEntry{Net: net.ParseIP("1.0.0.0").To4(), PrefixLen: 24, ASN: 1})
	_, err := Load(bytes.NewReader(b.Bytes()), false, 2, ModeCIDR)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLoad_RejectsModeMismatch(t *testing.T) {
	b := NewBuilder(false, ModeRange, 1, 1)
	b.Add(RawEntry{Net: net.ParseIP("1.0.0.0").To4(), ASN: 1})
	_, err := Load(bytes.NewReader(b.Bytes()), false, 1, ModeCIDR)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLookup_WrongFamilyRejected(t *testing.T) {
	tbl := buildCloudflareTable(t)
	idx, _ := tbl.LookupIPv6(net.ParseIP("2001:db8::1"))
	assert.Equal(t, 0, idx)
}

func itoa(n uint8) string {
	if n == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
