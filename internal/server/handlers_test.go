package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typesense-sync/internal/metrics"
	"typesense-sync/internal/models"
)

type fakeInvoker struct {
	payload json.RawMessage
	result  interface{}
	err     error
}

func (f *fakeInvoker) Handle(_ context.Context, payload json.RawMessage) (interface{}, error) {
	f.payload = payload
	return f.result, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Health(context.Context) error { return f.err }

func newTestHandlers(invoker Invoker, pinger Pinger) (*Handlers, *prometheus.Registry) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	registry := prometheus.NewRegistry()
	metrics.NewMetrics(registry).SearchServed(nil)
	return NewHandlers(invoker, pinger, registry, logger), registry
}

func TestInvokeQuery(t *testing.T) {
	invoker := &fakeInvoker{result: `{"found":0}`}
	h, _ := newTestHandlers(invoker, fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"typeName":"Query"}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"found":0}`, rec.Body.String())
	assert.JSONEq(t, `{"typeName":"Query"}`, string(invoker.payload))
}

func TestInvokeBatch(t *testing.T) {
	h, _ := newTestHandlers(&fakeInvoker{}, fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"Records":[]}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvokeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown", &models.UnknownEventError{}, http.StatusBadRequest},
		{"decode", &models.DecodeError{Reason: "bad"}, http.StatusBadRequest},
		{"sync", &models.SyncError{Err: errors.New("boom")}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers(&fakeInvoker{err: tt.err}, fakePinger{})

			req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			h.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestInvokeMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandlers(&fakeInvoker{}, fakePinger{})

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoke", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(&fakeInvoker{}, fakePinger{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h, _ = newTestHandlers(&fakeInvoker{}, fakePinger{err: errors.New("down")})
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandlers(&fakeInvoker{}, fakePinger{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "typesense_sync_search_requests_total")
}
