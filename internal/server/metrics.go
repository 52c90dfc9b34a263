package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry           *prometheus.Registry
	campaignReadsTotal *prometheus.CounterVec
	donationsTotal     *prometheus.CounterVec
	createsTotal       *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	donationInFlight   prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainraise_campaign_reads_total",
		Help: "Campaign read requests served",
	}, []string{"status"})

	donations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainraise_donations_total",
		Help: "Donation flow submissions",
	}, []string{"status"})

	creates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainraise_campaign_creates_total",
		Help: "Campaign creation submissions",
	}, []string{"status"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainraise_verifications_total",
		Help: "Recipient verification requests forwarded to the backend",
	}, []string{"status"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chainraise_donation_in_flight",
		Help: "Whether a donation flow is currently pending",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(reads, donations, creates, verifications, inFlight)

	return &metricsRegistry{
		registry:           r,
		campaignReadsTotal: reads,
		donationsTotal:     donations,
		createsTotal:       creates,
		verificationsTotal: verifications,
		donationInFlight:   inFlight,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incRead(status string) {
	m.campaignReadsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incDonation(status string) {
	m.donationsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incCreate(status string) {
	m.createsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incVerification(status string) {
	m.verificationsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) setInFlight(active bool) {
	if active {
		m.donationInFlight.Set(1)
		return
	}
	m.donationInFlight.Set(0)
}
