package codec_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bgpfix/flowan/codec"
	"github.com/bgpfix/flowan/record"
)

func buildSampleSchema() *record.Schema {
	s := record.NewSchema()
	s.Add("count", "packet count", record.KindUint32, false)
	s.Add("srcIP", "source address", record.KindIP4, false)
	s.Add("name", "a string", record.KindString, false)
	s.Add("ports", "seen ports", record.KindUint16, true)
	return s
}

func buildSampleRow() *record.Buffer {
	b := record.NewBuffer()
	b.WriteUint32(42)
	b.WriteIP4([4]byte{1, 2, 3, 4})
	b.WriteString("hello\nworld")
	b.BeginRepeat(2)
	b.WriteUint16(80)
	b.WriteUint16(443)
	return b
}

func TestRoundTrip_NumericExact(t *testing.T) {
	schema := buildSampleSchema()
	row := buildSampleRow()

	values, err := record.DecodeRow(schema, row.Bytes())
	assert.NoError(t, err)
	assert.EqualValues(t, 42, values[0].Scalar)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, values[1].Scalar)
	assert.Equal(t, "hello\nworld", values[2].Scalar)
	assert.Len(t, values[3].Elems, 2)
}

func TestWriteText_And_JSON_AgreeOnLogicalRow(t *testing.T) {
	schema := buildSampleSchema()
	row := buildSampleRow()
	values, err := record.DecodeRow(schema, row.Bytes())
	assert.NoError(t, err)

	opts := codec.DefaultOptions()

	var textBuf bytes.Buffer
	assert.NoError(t, codec.WriteText(&textBuf, values, opts))
	assert.Contains(t, textBuf.String(), "42")
	assert.Contains(t, textBuf.String(), "1.2.3.4")
	assert.Contains(t, textBuf.String(), `"hello\nworld"`)

	var jsonBuf bytes.Buffer
	assert.NoError(t, codec.WriteJSON(&jsonBuf, values, opts))
	assert.Contains(t, jsonBuf.String(), `"count":42`)
	assert.Contains(t, jsonBuf.String(), `"srcIP":"1.2.3.4"`)
	assert.Contains(t, jsonBuf.String(), `"name":"hello\nworld"`)
	assert.Contains(t, jsonBuf.String(), `"ports":[80,443]`)
}

func TestSanitize_IdempotentOnValidUTF8(t *testing.T) {
	assert := assert.New(t)
	s := "plain ascii, some éè utf8"
	once := codec.Sanitize(s)
	twice := codec.Sanitize(once)
	assert.Equal(once, twice)
}

func TestSanitize_RejectsInvalidSequences(t *testing.T) {
	assert := assert.New(t)
	// overlong encoding of '/' and a lone continuation byte
	bad := string([]byte{0xc0, 0xaf, 0x80})
	out := codec.Sanitize(bad)
	assert.NotContains(out, string([]byte{0xc0}))
}

func TestFormatDouble_AlwaysHasPointOrExponent(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("1.0", codec.FormatDouble(1))
	assert.Contains(codec.FormatDouble(1e21), ".")
	assert.Contains(codec.FormatDouble(1e21), "e+")
}

func TestFormatTimestamp_SecsFrac(t *testing.T) {
	assert := assert.New(t)
	ts := time.Unix(100, 500)
	assert.Equal("100.000000500", codec.FormatTimestamp(ts, codec.TimeSecsFrac))
}
