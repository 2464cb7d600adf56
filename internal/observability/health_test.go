package observability_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corvid-systems/lintsched/internal/observability"
)

func TestHealthHandler_AlwaysOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	observability.HealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyHandler_NoChecksIsReady(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	observability.ReadyHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyHandler_FailingCheckIsUnavailable(t *testing.T) {
	t.Parallel()

	failing := func(context.Context) error { return errors.New("not ready") }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	observability.ReadyHandler(failing).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestReadyHandler_ShortCircuitsOnFirstFailure(t *testing.T) {
	t.Parallel()

	called := false
	passing := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("boom") }
	neverCalled := func(context.Context) error {
		called = true
		return nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	observability.ReadyHandler(passing, failing, neverCalled).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, called, "checks after the first failure must not run")
}
