// Package metrics exposes crawl activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records crawl activity. It satisfies the observer interfaces
// of the weibo client and the scraper, so one value can be handed to both.
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	pages          prometheus.Counter
	posts          prometheus.Counter
	images         *prometheus.CounterVec
	crawls         *prometheus.CounterVec
	crawlDuration  prometheus.Histogram
	tasksActive    prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbscraper_requests_total",
			Help: "Upstream requests by endpoint and status code",
		}, []string{"endpoint", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wbscraper_request_duration_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wbscraper_pages_fetched_total",
			Help: "Listing pages fetched",
		}),
		posts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wbscraper_posts_collected_total",
			Help: "Posts that passed the filters",
		}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbscraper_images_total",
			Help: "Image saves by result",
		}, []string{"result"}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbscraper_crawls_total",
			Help: "Finished crawls by stop reason",
		}, []string{"reason"}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wbscraper_crawl_duration_seconds",
			Help:    "Wall time of a whole crawl in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wbscraper_tasks_active",
			Help: "Crawl tasks currently running",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.pages,
		c.posts,
		c.images,
		c.crawls,
		c.crawlDuration,
		c.tasksActive,
	)
	return c
}

// ObserveRequest records one upstream response. status 0 means the request
// never got a response.
func (c *Collector) ObserveRequest(endpoint string, status int, d time.Duration) {
	c.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) PageFetched() {
	c.pages.Inc()
}

func (c *Collector) PostCollected() {
	c.posts.Inc()
}

func (c *Collector) ImageSaved(cached bool) {
	if cached {
		c.images.WithLabelValues("cached").Inc()
		return
	}
	c.images.WithLabelValues("downloaded").Inc()
}

func (c *Collector) ImageFailed() {
	c.images.WithLabelValues("failed").Inc()
}

// CrawlFinished records the end of a crawl
func (c *Collector) CrawlFinished(reason string, d time.Duration) {
	c.crawls.WithLabelValues(reason).Inc()
	c.crawlDuration.Observe(d.Seconds())
}

// TaskStarted and TaskDone track running tasks of the web front end
func (c *Collector) TaskStarted() {
	c.tasksActive.Inc()
}

func (c *Collector) TaskDone() {
	c.tasksActive.Dec()
}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
