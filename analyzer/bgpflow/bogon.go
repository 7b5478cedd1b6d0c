package bgpflow

import "net/netip"

var bogonRanges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.1.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/3"),
}

// isBogon reports whether prefix p falls in a reserved traditional IPv4
// range (spec §4.F "Bogon detection (optional)").
func isBogon(p netip.Prefix) bool {
	addr := p.Addr()
	for _, b := range bogonRanges {
		if b.Contains(addr) {
			return true
		}
	}
	return false
}

// private/reserved ASN ranges (spec §4.F).
func isPrivateASN(asn uint32) bool {
	if asn >= 64512 && asn <= 65534 {
		return true
	}
	if asn >= 4200000000 && asn <= 4294967294 {
		return true
	}
	return false
}

// blackholeCommunity is the well-known BLACKHOLE community, 65535:666
// (0xFFFF029A), spec §4.F.
const blackholeCommunity = 0xFFFF029A

func isBlackholeCommunity(c uint32) bool {
	return c == blackholeCommunity
}
