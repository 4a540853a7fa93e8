package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lull_intents_total",
			Help: "Utterances handled, by classified intent.",
		},
		[]string{"intent"},
	)

	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lull_provider_failures_total",
			Help: "Capability provider calls that returned an error.",
		},
		[]string{"provider"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "lull_provider_duration_seconds",
			Help: "Duration of capability provider calls in seconds.",
		},
		[]string{"provider"},
	)

	BusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lull_bus_messages_total",
			Help: "Messages handled by the websocket shard, by kind.",
		},
		[]string{"kind"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
