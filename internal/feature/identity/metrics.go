package identity

import "github.com/prometheus/client_golang/prometheus"

var resolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{Namespace: "csesa", Name: "identity_resolutions_total", Help: "OAuth identity resolutions by outcome"},
	[]string{"outcome"},
)

func init() { prometheus.MustRegister(resolutions) }

const (
	outcomeExisting  = "existing"
	outcomeActivated = "activated"
	outcomeBootstrap = "bootstrap"
)

func observe(outcome string) { resolutions.WithLabelValues(outcome).Inc() }
