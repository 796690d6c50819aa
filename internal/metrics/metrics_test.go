package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeReplacesNonAlnumWithUnderscore(t *testing.T) {
	assert.Equal(t, "ciro_rpc_calls", sanitize("rpc/calls"))
	assert.Equal(t, "ciro_distributor_auction_duration", sanitize("distributor/auction_duration"))
}

func TestNewRegisteredCounterReturnsNilCounterWhenDisabled(t *testing.T) {
	Enabled = false
	defer func() { Enabled = true }()

	c := NewRegisteredCounter("test/disabled_counter")
	c.Inc(5)
	assert.Equal(t, int64(0), c.Count())
}

func TestHandlerServesPrometheusExposition(t *testing.T) {
	NewRegisteredCounter("test/handler_counter").Inc(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/metrics", nil)
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ciro_test_handler_counter")
}
