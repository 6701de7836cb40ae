package delivery

import (
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// AggregateKey identifies one analytics bucket: template, channel, date and
// hour of day.
type AggregateKey struct {
	TemplateSlug string
	Channel      channel.Channel
	Date         string // YYYY-MM-DD
	Hour         int    // 0-23
}

// KeyFor builds the aggregate key for a delivery attempt at the given time.
func KeyFor(templateSlug string, ch channel.Channel, at time.Time) AggregateKey {
	return AggregateKey{
		TemplateSlug: templateSlug,
		Channel:      ch,
		Date:         at.Format("2006-01-02"),
		Hour:         at.Hour(),
	}
}

// Aggregate is a rolled-up counter/timing record for one bucket. Counters
// only ever increase.
//
// AvgDeliveryTime is a two-point moving average (old average and new sample),
// not a true cumulative mean. This mirrors the established reporting
// behavior; dashboards read it as a rough signal, not an SLA metric.
type Aggregate struct {
	Key             AggregateKey
	Sent            int64
	Delivered       int64
	Failed          int64
	AvgDeliveryTime time.Duration
	Cost            float64
}

// Apply folds a delta into the aggregate.
func (a *Aggregate) Apply(delta AggregateDelta) {
	a.Sent += int64(delta.Sent)
	a.Delivered += int64(delta.Delivered)
	a.Failed += int64(delta.Failed)
	a.Cost += delta.Cost

	if delta.DeliveryTime > 0 {
		if a.AvgDeliveryTime == 0 {
			a.AvgDeliveryTime = delta.DeliveryTime
		} else {
			a.AvgDeliveryTime = (a.AvgDeliveryTime + delta.DeliveryTime) / 2
		}
	}
}

// AggregateDelta is one delivery attempt's contribution to an aggregate.
type AggregateDelta struct {
	Sent         int
	Delivered    int
	Failed       int
	DeliveryTime time.Duration
	Cost         float64
}
