package protocol

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	body := []byte(`{"action":"heartbeat","hostname":"h1"}`)

	framed, err := Encode(body)
	require.NoError(t, err)

	r := bufio.NewReader(bytes.NewReader(framed))
	got, err := DecodeNext(r)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestDecodeNext_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"a":1}`)))
	require.NoError(t, WriteFrame(&buf, []byte(`{"b":2}`)))

	r := bufio.NewReader(&buf)
	first, err := DecodeNext(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))

	second, err := DecodeNext(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second))
}

func TestDecodeNext_Oversize(t *testing.T) {
	lenPrefix := []byte{0x00, 0x01, 0x10, 0x00} // 69632 > MaxFrameSize
	r := bufio.NewReader(bytes.NewReader(lenPrefix))
	_, err := DecodeNext(r)
	assert.ErrorIs(t, err, ErrOversizeFrame)
}

func TestDecodeNext_IncompleteInput(t *testing.T) {
	// Declares 10 bytes of body but supplies none.
	lenPrefix := []byte{0x00, 0x00, 0x00, 0x0a}
	r := bufio.NewReader(bytes.NewReader(lenPrefix))
	_, err := DecodeNext(r)
	assert.ErrorIs(t, err, ErrIncompleteInput)
}

func TestDecodeNext_PartialLengthPrefix(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := DecodeNext(r)
	assert.ErrorIs(t, err, ErrIncompleteInput)
}

func TestEncode_RejectsOversizeBody(t *testing.T) {
	_, err := Encode(make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrOversizeFrame)
}

// Invariant property 5 (spec §8): framing is injective — decode(encode(x)) == x,
// and re-encoding what was decoded reproduces the original bytes.
func TestFraming_Injective(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{}`),
		[]byte(`{"action":"goodbye"}`),
		bytes.Repeat([]byte("x"), 1000),
	}
	for _, body := range bodies {
		framed, err := Encode(body)
		require.NoError(t, err)
		r := bufio.NewReader(bytes.NewReader(framed))
		decoded, err := DecodeNext(r)
		require.NoError(t, err)
		reEncoded, err := Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, framed, reEncoded)
	}
}
