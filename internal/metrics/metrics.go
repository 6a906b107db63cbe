package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scans counts scan attempts by outcome: ok, duplicate, empty, not_found,
// expired, cohort_mismatch, error.
var Scans = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classattend_scans_total",
	Help: "Barcode scan attempts by outcome.",
}, []string{"outcome"})

// TokensIssued counts issued barcodes by path (single, bulk).
var TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classattend_barcodes_issued_total",
	Help: "Barcodes issued.",
}, []string{"path"})

// Renewals counts expiry renewals.
var Renewals = promauto.NewCounter(prometheus.CounterOpts{
	Name: "classattend_renewals_total",
	Help: "Barcode expiry renewals.",
})
