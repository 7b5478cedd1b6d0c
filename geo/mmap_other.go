//go:build !linux

package geo

import "errors"

// LoadMmap is only implemented on Linux; other platforms fall back to Load.
func LoadMmap(path string, ipv6 bool, wantVersion uint32, wantMode Mode) (*Table, error) {
	return nil, errors.New("geo: memory-mapped loading is only implemented on linux, use Load instead")
}
