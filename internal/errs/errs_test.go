package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapsEveryKind(t *testing.T) {
	cases := map[Kind]int{
		Input:       http.StatusBadRequest,
		Transient:   http.StatusServiceUnavailable,
		Consistency: http.StatusConflict,
		Protocol:    http.StatusUnprocessableEntity,
		Fatal:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind))
	}
}

func TestAsUnwrapsWrappedTaxonomyError(t *testing.T) {
	base := New(Consistency, "test.conflict", errors.New("version mismatch"))
	wrapped := fWrap(base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Consistency, got.Kind)
	assert.Equal(t, "test.conflict", got.Code)
}

func TestAsReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("not tagged"))
	assert.False(t, ok)
}

func TestWithRetryAfterSetsField(t *testing.T) {
	e := New(Transient, "rate_limited", nil).WithRetryAfter(30)
	assert.Equal(t, 30, e.RetryAfter)
}

func TestWithHTTPStatusOverridesKindMapping(t *testing.T) {
	e := New(Input, "telemetry.invalid_signature", nil)
	_, ok := e.StatusOverride()
	assert.False(t, ok)

	e.WithHTTPStatus(http.StatusUnauthorized)
	status, ok := e.StatusOverride()
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestKindStringMatchesEveryMember(t *testing.T) {
	assert.Equal(t, "transient", Transient.String())
	assert.Equal(t, "input", Input.String())
	assert.Equal(t, "consistency", Consistency.String())
	assert.Equal(t, "protocol", Protocol.String())
	assert.Equal(t, "fatal", Fatal.String())
}

func fWrap(err error) error {
	return fmt.Errorf("outer: %w", err)
}
