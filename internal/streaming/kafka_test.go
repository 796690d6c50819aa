package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithNoBrokersReturnsNoOpOutbox(t *testing.T) {
	o, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestNoOpOutboxPublishesAreSilentlyDiscarded(t *testing.T) {
	o, err := New(Config{})
	require.NoError(t, err)

	assert.NoError(t, o.PublishEvent("0xContract", "JobSubmitted", "0xTxHash", json.RawMessage(`{}`)))
	assert.NoError(t, o.PublishJobFact("job-1", "JobCompleted", "worker-1"))
}

func TestNoOpOutboxCloseIsSafe(t *testing.T) {
	o, err := New(Config{})
	require.NoError(t, err)
	assert.NoError(t, o.Close())
}
