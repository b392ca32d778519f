package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ err error }

func (f fakeStore) Ping(context.Context) error { return f.err }
func (f fakeStore) Backend() string            { return "sqlite" }

type fakePool struct{}

func (fakePool) Size() int    { return 4 }
func (fakePool) Active() int  { return 1 }
func (fakePool) Pending() int { return 0 }

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil).Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "thumbgate", resp.Data.(map[string]interface{})["service"])
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		store  StorePinger
		pool   PoolStats
		status int
	}{
		{"ready", fakeStore{}, fakePool{}, http.StatusOK},
		{"not initialized", nil, nil, http.StatusServiceUnavailable},
		{"store down", fakeStore{err: errors.New("connection refused")}, fakePool{}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.store, tt.pool).Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	DetailsHandler("0.1.0")(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	var d Details
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	assert.Equal(t, Details{Provider: "ThumbnailMicroservice", Version: "0.1.0", Features: []string{}}, d)
}
