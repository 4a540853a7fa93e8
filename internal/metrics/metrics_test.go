package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentsTotal_Increments(t *testing.T) {
	before := testutil.ToFloat64(IntentsTotal.WithLabelValues("greeting"))
	IntentsTotal.WithLabelValues("greeting").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(IntentsTotal.WithLabelValues("greeting")))
}

func TestHandler_ExposesCounters(t *testing.T) {
	ProviderFailuresTotal.WithLabelValues("translate").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lull_provider_failures_total{provider="translate"}`)
}
