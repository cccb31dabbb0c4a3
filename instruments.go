package troupe

import (
	"time"

	"github.com/ygrebnov/troupe/metrics"
)

const (
	metricReceived      = "troupe_messages_received_total"
	metricFailed        = "troupe_messages_failed_total"
	metricDuration      = "troupe_receive_duration_seconds"
	metricWorkersLive   = "troupe_workers_live"
	metricWorkersAdded  = "troupe_workers_added_total"
	metricWorkersRemove = "troupe_workers_removed_total"
)

// instruments are the metrics a runtime records.
type instruments struct {
	received metrics.Counter
	failed   metrics.Counter
	duration metrics.Histogram
	live     metrics.UpDownCounter
	added    metrics.Counter
	removed  metrics.Counter
}

func newInstruments(p metrics.Provider) *instruments {
	return &instruments{
		received: p.Counter(metricReceived, metrics.WithDescription("Messages delivered to receive"), metrics.WithUnit("1")),
		failed:   p.Counter(metricFailed, metrics.WithDescription("Messages whose receive failed"), metrics.WithUnit("1")),
		duration: p.Histogram(metricDuration, metrics.WithDescription("Receive duration"), metrics.WithUnit("seconds")),
		live:     p.UpDownCounter(metricWorkersLive, metrics.WithDescription("Workers currently listening"), metrics.WithUnit("1")),
		added:    p.Counter(metricWorkersAdded, metrics.WithDescription("Workers spawned"), metrics.WithUnit("1")),
		removed:  p.Counter(metricWorkersRemove, metrics.WithDescription("Workers exited"), metrics.WithUnit("1")),
	}
}

func (in *instruments) observe(start time.Time, err error) {
	in.received.Add(1)
	in.duration.Record(time.Since(start).Seconds())
	if err != nil {
		in.failed.Add(1)
	}
}

func (in *instruments) workerUp() {
	in.live.Add(1)
	in.added.Add(1)
}

func (in *instruments) workerDown() {
	in.live.Add(-1)
	in.removed.Add(1)
}
