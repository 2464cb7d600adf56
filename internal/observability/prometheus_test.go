package observability_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/observability"
)

func TestPrometheusHandler_ReturnsUsableMeter(t *testing.T) {
	t.Parallel()

	handler, meter, err := observability.PrometheusHandler("lintsched_test")
	require.NoError(t, err)
	require.NotNil(t, handler)
	require.NotNil(t, meter)

	counter, err := meter.Int64Counter("lintsched.test.counter")
	require.NoError(t, err)

	counter.Add(t.Context(), 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "lintsched_test_counter")
}

func TestPrometheusHandler_IndependentRegistriesPerCall(t *testing.T) {
	t.Parallel()

	_, meterA, err := observability.PrometheusHandler("lintsched_test_a")
	require.NoError(t, err)

	_, meterB, err := observability.PrometheusHandler("lintsched_test_b")
	require.NoError(t, err)

	_, err = meterA.Int64Counter("lintsched.duplicate.counter")
	require.NoError(t, err)

	_, err = meterB.Int64Counter("lintsched.duplicate.counter")
	assert.NoError(t, err, "separate registries must not collide on the same instrument name")
}
