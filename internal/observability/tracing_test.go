package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestParseSampler(t *testing.T) {
	assert.Contains(t, parseSampler("always_off", "").Description(), "AlwaysOffSampler")
	assert.Contains(t, parseSampler("traceidratio", "0.5").Description(), "TraceIDRatioBased{0.5}")
	assert.Contains(t, parseSampler("traceidratio", "7").Description(), "AlwaysOnSampler")
	assert.Contains(t, parseSampler("", "0.25").Description(), "ParentBased")
}

func TestInstrumentClientWrapsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := InstrumentClient(&http.Client{})
	assert.NotNil(t, client.Transport)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
