package decoder

import (
	"encoding/binary"
	"testing"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterV1DecodesJobSubmitted(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	RegisterV1(r, "0xJOBS", "0xWORKERS")

	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data[:8], 7)
	binary.BigEndian.PutUint64(data[8:16], 1000)

	raw := chain.RawEvent{
		ContractAddress: "0xJOBS",
		EventSelector:   domain.EventJobSubmitted,
		Topics:          []string{domain.EventJobSubmitted, "job-1", "0xSUBMITTER"},
		Data:            data,
	}

	decoded, ok := r.Decode(raw, 1)
	require.True(t, ok)
	assert.Equal(t, domain.EventJobSubmitted, decoded.EventKind)
	assert.Contains(t, string(decoded.Payload), `"job_id":"job-1"`)
	assert.Contains(t, string(decoded.Payload), `"priority":7`)
}

func TestDecodeUnregisteredKeyIsUndecodable(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)

	_, ok := r.Decode(chain.RawEvent{ContractAddress: "0xUNKNOWN", EventSelector: "Mystery"}, 1)
	assert.False(t, ok)
}

func TestDecodeMalformedDataIsUndecodable(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	RegisterV1(r, "0xJOBS", "0xWORKERS")

	raw := chain.RawEvent{
		ContractAddress: "0xJOBS",
		EventSelector:   domain.EventJobSubmitted,
		Topics:          []string{domain.EventJobSubmitted, "job-1", "0xSUBMITTER"},
		Data:            []byte{0x01}, // too short
	}

	_, ok := r.Decode(raw, 1)
	assert.False(t, ok)
}

func TestRegisterReplacesExistingAndInvalidatesCache(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	calls := 0
	r.Register("0xC", "Sel", 1, func(chain.RawEvent) (*Decoded, error) {
		calls++
		return &Decoded{EventKind: "Sel", Payload: []byte(`{}`)}, nil
	})
	_, ok := r.Decode(chain.RawEvent{ContractAddress: "0xC", EventSelector: "Sel"}, 1)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	replaced := false
	r.Register("0xC", "Sel", 1, func(chain.RawEvent) (*Decoded, error) {
		replaced = true
		return &Decoded{EventKind: "Sel", Payload: []byte(`{}`)}, nil
	})
	_, ok = r.Decode(chain.RawEvent{ContractAddress: "0xC", EventSelector: "Sel"}, 1)
	require.True(t, ok)
	assert.True(t, replaced)
}
