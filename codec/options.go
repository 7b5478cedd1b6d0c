package codec

// IPv4Format selects how IPv4 leaves are rendered (spec §4.C).
type IPv4Format int

const (
	IPv4Dotted IPv4Format = iota
	IPv4DottedZeroPad
	IPv4Hex
	IPv4Decimal
)

// IPv6Format selects how IPv6 leaves are rendered.
type IPv6Format int

const (
	IPv6Compressed IPv6Format = iota // RFC-5952-ish compressed form
	IPv6Expanded                     // 8 fully expanded hex groups
	IPv6Hex128                       // single 0x-prefixed 128-bit hex
	IPv6Hex64x2                      // two 0x-prefixed 64-bit halves
)

// MACFormat selects how MAC leaves are rendered.
type MACFormat int

const (
	MACColonHex MACFormat = iota
	MACHex64
	MACDecimal
)

// TimeFormat selects how timestamp leaves are rendered.
type TimeFormat int

const (
	TimeSecsFrac TimeFormat = iota // "secs.frac"
	TimeISO8601
)

// Options configures both the text and JSON translators.
type Options struct {
	IPv4     IPv4Format
	IPv6     IPv6Format
	MAC      MACFormat
	Time     TimeFormat
	HexUpper bool

	// Text mode only.
	Separator string

	// JSON mode only: suppress keys for empty repeating fields, and
	// restrict output to a caller-selected key set (nil means "all").
	SuppressEmptyRepeating bool
	SelectKeys             map[string]bool
}

// DefaultOptions matches the spec's stated defaults (dotted IPv4, compressed
// IPv6, colon-hex MAC, secs.frac timestamps, lowercase hex, tab separator).
func DefaultOptions() Options {
	return Options{
		IPv4:      IPv4Dotted,
		IPv6:      IPv6Compressed,
		MAC:       MACColonHex,
		Time:      TimeSecsFrac,
		Separator: "\t",
	}
}
