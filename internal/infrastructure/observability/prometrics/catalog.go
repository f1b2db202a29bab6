package prometrics

import (
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Instruments registers every metric the service records and returns them
// keyed the way use cases and middleware look them up.
func Instruments(r *Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Use case invocations by outcome.", "use_case", "outcome"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Calls to collaborators outside the process.", "peer", "endpoint", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"HTTP requests served.", "method", "route", "status"),
		observability.MCatalogReservations: r.Counter(string(observability.MCatalogReservations),
			"Stock reservations taken or released.", "outcome"),
		observability.MOrderCompensations: r.Counter(string(observability.MOrderCompensations),
			"Orders whose reservations were rolled back.", "reason"),
		observability.MLedgerRetries: r.Counter(string(observability.MLedgerRetries),
			"Failed writes of confirmed orders that were retried."),
		observability.MLedgerEscalations: r.Counter(string(observability.MLedgerEscalations),
			"Operator alerts raised for confirmed orders still missing from the ledger."),
		observability.MReleaseEscalations: r.Counter(string(observability.MReleaseEscalations),
			"Reservations whose release was abandoned during compensation; the stock needs manual repair.", "product_id"),
		observability.MEventsForwarded: r.Counter(string(observability.MEventsForwarded),
			"Domain events forwarded to the external sink.", "event", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Use case latency.", latencyBuckets, "use_case"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Latency of calls to external collaborators.", latencyBuckets, "peer", "endpoint"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"HTTP request latency.", prometheus.DefBuckets, "method", "route", "status"),
	}
	return counters, histograms
}
