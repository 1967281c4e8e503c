package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEventsCounter(t *testing.T) {
	before := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("invoice.paid", OutcomeProcessed))
	WebhookEventsTotal.WithLabelValues("invoice.paid", OutcomeProcessed).Inc()
	after := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("invoice.paid", OutcomeProcessed))
	assert.Equal(t, before+1, after)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	SyncJobsTotal.WithLabelValues("campaigns", "completed").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fbads_sync_jobs_total")
	assert.Contains(t, string(body), "go_goroutines")
}
