// Package metrics counts where repository reads were served from and how remote calls fail.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evsync"

// Recorder is nil-safe: a nil *Recorder records nothing.
type Recorder struct {
	reads          *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	writes         *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Repository reads by entity family and the tier that served them.",
		}, []string{"family", "source"}),
		remoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_failures_total",
			Help:      "Failed Remote Booking Service calls by family, operation and error kind.",
		}, []string{"family", "operation", "kind"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Confirmed writes mirrored into the cache.",
		}, []string{"family", "operation"}),
	}
	for _, c := range []prometheus.Collector{r.reads, r.remoteFailures, r.writes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Read(family, source string) {
	if r == nil {
		return
	}
	r.reads.WithLabelValues(family, source).Inc()
}

func (r *Recorder) RemoteFailure(family, operation, kind string) {
	if r == nil {
		return
	}
	r.remoteFailures.WithLabelValues(family, operation, kind).Inc()
}

func (r *Recorder) Write(family, operation string) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(family, operation).Inc()
}
