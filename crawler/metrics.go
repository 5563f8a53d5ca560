package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl session.
type Metrics struct {
	Registry           *prometheus.Registry
	PagesScannedTotal  prometheus.Counter
	FetchDuration      prometheus.Histogram
	ProductsTotal      prometheus.Counter
	DuplicatesTotal    prometheus.Counter
	EnrichmentsTotal   prometheus.Counter
	FetchErrorsTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_pages_scanned_total",
			Help: "Total listing pages fetched from the frontier.",
		},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Latency of page fetches, including retries.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_products_extracted_total",
			Help: "Total product records retained.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_duplicate_products_total",
			Help: "Listing elements skipped because their product URL was already seen.",
		},
	)
	enrichments := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_detail_enrichments_total",
			Help: "Detail-page fetches performed to enrich listing records.",
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_errors_total",
			Help: "Failed fetches by error category.",
		},
		[]string{"category"},
	)

	registry.MustRegister(pages, fetchDuration, products, duplicates, enrichments, fetchErrors)

	return &Metrics{
		Registry:          registry,
		PagesScannedTotal: pages,
		FetchDuration:     fetchDuration,
		ProductsTotal:     products,
		DuplicatesTotal:   duplicates,
		EnrichmentsTotal:  enrichments,
		FetchErrorsTotal:  fetchErrors,
	}
}

// IncPages increments the pages scanned counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesScannedTotal.Inc()
}

// ObserveFetch records a fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncProducts increments the retained products counter.
func (m *Metrics) IncProducts() {
	if m == nil {
		return
	}
	m.ProductsTotal.Inc()
}

// IncDuplicates increments the duplicates counter.
func (m *Metrics) IncDuplicates() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// IncEnrichments increments the detail enrichment counter.
func (m *Metrics) IncEnrichments() {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.Inc()
}

// IncFetchError increments the fetch error counter for a category label.
func (m *Metrics) IncFetchError(category string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(category).Inc()
}
