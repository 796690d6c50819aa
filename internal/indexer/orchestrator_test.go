package indexer

import (
	"testing"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/decoder"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecoderForTest() (*decoder.Registry, error) {
	reg, err := decoder.New(16)
	if err != nil {
		return nil, err
	}
	decoder.RegisterV1(reg, "0xJOBS", "0xWORKERS")
	return reg, nil
}

func TestToChainEventMarksUndecodable(t *testing.T) {
	reg, err := newDecoderForTest()
	require.NoError(t, err)
	o := &Orchestrator{cfg: Config{ABIVersion: 1}, decoder: reg}

	raw := chain.RawEvent{ContractAddress: "0xUNREGISTERED", EventSelector: "Mystery", BlockNumber: 5}
	ev := o.toChainEvent(raw, true)

	assert.True(t, ev.Undecodable)
	assert.Equal(t, "Undecodable", ev.EventKind)
	assert.True(t, ev.Finalized)
}

func TestToChainEventDecodesKnownSelector(t *testing.T) {
	reg, err := newDecoderForTest()
	require.NoError(t, err)
	o := &Orchestrator{cfg: Config{ABIVersion: 1}, decoder: reg}

	raw := chain.RawEvent{
		ContractAddress: "0xJOBS",
		EventSelector:   domain.EventJobAssigned,
		Topics:          []string{domain.EventJobAssigned, "job-1", "worker-1"},
		BlockNumber:     5,
	}
	ev := o.toChainEvent(raw, false)

	assert.False(t, ev.Undecodable)
	assert.Equal(t, domain.EventJobAssigned, ev.EventKind)
	assert.False(t, ev.Finalized)
}
