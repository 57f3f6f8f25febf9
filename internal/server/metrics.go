package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	opHide   = "hide"
	opReveal = "reveal"

	outcomeOK         = "ok"
	outcomeBadRequest = "bad_request"
	outcomeError      = "error"
)

type metrics struct {
	requests     *prometheus.CounterVec
	payloadBytes *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ciphercanvas_requests_total",
				Help: "Total count of hide and reveal requests by outcome",
			},
			[]string{"op", "outcome"},
		),
		payloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ciphercanvas_payload_bytes",
				Help:    "Size of the sealed payload hidden in or extracted from an image",
				Buckets: prometheus.ExponentialBuckets(32, 4, 8),
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.requests, m.payloadBytes)
	return m
}

func (m *metrics) observe(op, outcome string) {
	m.requests.WithLabelValues(op, outcome).Inc()
}
