package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bgpfix/flowan/geo"
)

// allFields lists every column -o accepts, in the order `fields` prints
// them (spec §6 CLI).
var allFields = []string{
	"ip", "netmask", "net", "mask", "range", "org", "country",
	"county", "city", "asn", "lat", "lng", "prec", "netid",
}

// result bundles a query's raw inputs and its geo.Entry, if any, so the
// same data can be rendered as text, KML, or JSON without re-querying.
type result struct {
	query string
	ip    net.IP
	idx   int
	entry geo.Entry
	found bool
}

func lookup(table *geo.Table, query string) result {
	r := result{query: query}
	ip := net.ParseIP(query)
	if ip == nil {
		return r
	}
	r.ip = ip
	if v4 := ip.To4(); v4 != nil {
		r.idx, r.entry = table.LookupIPv4(ip)
	} else {
		r.idx, r.entry = table.LookupIPv6(ip)
	}
	r.found = r.idx > 0
	return r
}

// field renders one named column for a result, or "" if the field has no
// value (a non-match still renders "ip" so the caller can see the miss).
func (r result) field(name string) string {
	e := r.entry
	switch name {
	case "ip":
		return r.query
	case "netmask":
		if !r.found || e.IsRangeForm {
			return ""
		}
		return netmaskString(e.PrefixLen, e.Net.Is4())
	case "net":
		if !r.found {
			return ""
		}
		return e.Net.String()
	case "mask":
		if !r.found || e.IsRangeForm {
			return ""
		}
		return strconv.Itoa(int(e.PrefixLen))
	case "range":
		if !r.found {
			return ""
		}
		if e.IsRangeForm {
			return e.Net.String() + "-" + e.End.String()
		}
		return fmt.Sprintf("%s/%d", e.Net.String(), e.PrefixLen)
	case "org":
		return e.Org
	case "country":
		return e.Country
	case "county":
		return e.County
	case "city":
		return e.City
	case "asn":
		if !r.found {
			return ""
		}
		return strconv.FormatUint(uint64(e.ASN), 10)
	case "lat":
		if !r.found {
			return ""
		}
		return strconv.FormatFloat(float64(e.Lat), 'f', 6, 32)
	case "lng":
		if !r.found {
			return ""
		}
		return strconv.FormatFloat(float64(e.Lng), 'f', 6, 32)
	case "prec":
		if !r.found {
			return ""
		}
		return strconv.FormatFloat(float64(e.Precision), 'f', 3, 32)
	case "netid":
		if !r.found {
			return ""
		}
		return strconv.FormatUint(uint64(e.NetID), 10)
	default:
		return ""
	}
}

func netmaskString(prefixLen uint8, v4 bool) string {
	var bits int
	if v4 {
		bits = 32
	} else {
		bits = 128
	}
	if int(prefixLen) > bits {
		return ""
	}
	m := net.CIDRMask(int(prefixLen), bits)
	return net.IP(m).String()
}

// parseFields splits a -o comma list and rejects unknown names, matching
// the "ip, netmask, net, mask, range, org, country, county, city, asn,
// lat, lng, prec, netid" closed set from the CLI surface.
func parseFields(spec string) ([]string, error) {
	if spec == "" {
		return allFields, nil
	}
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if !validField(name) {
			return nil, fmt.Errorf("t2whois: unknown field %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func validField(name string) bool {
	for _, f := range allFields {
		if f == name {
			return true
		}
	}
	return false
}
