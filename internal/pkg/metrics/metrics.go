package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logvault_lines_processed_total",
		Help: "The total number of log lines read from sources",
	}, []string{"file_id"})

	RecordsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logvault_records_inserted_total",
		Help: "The total number of records durably stored",
	}, []string{"file_id"})

	DuplicatesAbsorbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logvault_duplicates_absorbed_total",
		Help: "Total duplicate-key inserts absorbed during re-ingestion",
	}, []string{"file_id"})

	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logvault_parse_errors_total",
		Help: "Total malformed lines encountered",
	}, []string{"file_id", "policy"})

	PutLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logvault_put_latency_seconds",
		Help:    "Storage put latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logvault_http_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
