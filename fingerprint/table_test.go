package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `% 3
51c64c77e60f3980eea90869b68c58a8 Chrome 108 (sorted JA3)
e7d705a3286e19ea42f587b344ee6865 Tor Browser
cd08e31494f9531f560d64c695473da9 OpenVPN client
`

func TestLoad_ParsesHeaderAndSorts(t *testing.T) {
	tbl, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	desc, ok := tbl.Lookup("e7d705a3286e19ea42f587b344ee6865")
	assert.True(t, ok)
	assert.Equal(t, "Tor Browser", desc)
}

func TestLookup_MissReturnsFalse(t *testing.T) {
	tbl, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	_, ok := tbl.Lookup("0000000000000000000000000000000")
	assert.False(t, ok)
}

func TestLoad_RejectsCountMismatch(t *testing.T) {
	bad := "% 5\nabc one\n"
	_, err := Load(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestLookupBytes_LowercasesInput(t *testing.T) {
	tbl, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	desc, ok := tbl.LookupBytes([]byte("CD08E31494F9531F560D64C695473DA9"))
	assert.True(t, ok)
	assert.Equal(t, "OpenVPN client", desc)
}
