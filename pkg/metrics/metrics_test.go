package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest("listing", 200, 120*time.Millisecond)
	c.ObserveRequest("listing", 200, 80*time.Millisecond)
	c.ObserveRequest("image", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("listing", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("image", "0")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.requestLatency))
}

func TestCrawlCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.PageFetched()
	c.PageFetched()
	c.PostCollected()
	c.ImageSaved(false)
	c.ImageSaved(true)
	c.ImageSaved(true)
	c.ImageFailed()
	c.CrawlFinished("empty_page", 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.pages))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.posts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.images.WithLabelValues("downloaded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.images.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.images.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.crawls.WithLabelValues("empty_page")))
}

func TestTaskGauge(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.TaskStarted()
	c.TaskStarted()
	c.TaskDone()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksActive))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.PageFetched()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "wbscraper_pages_fetched_total 1")
}
