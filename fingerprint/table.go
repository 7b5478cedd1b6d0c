// Package fingerprint implements the sorted hash->description lookup table
// shared by JA3, JA4, JA4S and the SSL-certificate blacklist checks.
package fingerprint

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Table is a loaded, binary-searchable {hash, description} list. Entries
// are kept in two parallel slices so lookups compare raw hash bytes
// without touching the description until a match is found.
type Table struct {
	hashes []string
	descs  []string
}

// Load parses a text file whose first non-blank line is `% <count>`
// followed by exactly count `<hash> <description>` lines (spec §4.E). Lines
// are sorted by hash if the file is not already sorted, so lookups are
// always a valid binary search regardless of input ordering.
func Load(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var count int = -1
	t := &Table{}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "%") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "%")))
			if err != nil {
				return nil, fmt.Errorf("fingerprint: bad header line %q: %w", line, err)
			}
			count = n
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		hash := fields[0]
		desc := ""
		if len(fields) == 2 {
			desc = strings.TrimSpace(fields[1])
		}
		t.hashes = append(t.hashes, hash)
		t.descs = append(t.descs, desc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if count >= 0 && len(t.hashes) != count {
		return nil, fmt.Errorf("fingerprint: header declared %d entries, found %d", count, len(t.hashes))
	}

	if !sort.SliceIsSorted(t.hashes, func(i, j int) bool { return t.hashes[i] < t.hashes[j] }) {
		idx := make([]int, len(t.hashes))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return t.hashes[idx[a]] < t.hashes[idx[b]] })
		sortedHashes := make([]string, len(idx))
		sortedDescs := make([]string, len(idx))
		for i, j := range idx {
			sortedHashes[i] = t.hashes[j]
			sortedDescs[i] = t.descs[j]
		}
		t.hashes, t.descs = sortedHashes, sortedDescs
	}

	return t, nil
}

// Len reports the number of loaded entries.
func (t *Table) Len() int { return len(t.hashes) }

// Lookup performs a binary search by exact byte comparison (memcmp
// equivalent) on the hash string and returns (description, true) on an
// exact match, or ("", false) otherwise.
func (t *Table) Lookup(hash string) (string, bool) {
	n := len(t.hashes)
	i := sort.Search(n, func(i int) bool { return t.hashes[i] >= hash })
	if i < n && t.hashes[i] == hash {
		return t.descs[i], true
	}
	return "", false
}

// LookupBytes is a convenience wrapper for callers holding a raw hash as
// bytes (eg. a computed MD5/SHA-256 digest formatted to lowercase hex).
func (t *Table) LookupBytes(hash []byte) (string, bool) {
	return t.Lookup(string(bytes.ToLower(hash)))
}
