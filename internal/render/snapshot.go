package render

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/insurance-maps/internal/catalog"
	"github.com/couchcryptid/insurance-maps/internal/domain"
)

// ErrUnknownMetric is returned when a requested metric is not available
// for a trade, e.g. a WC class code its dataset does not carry.
var ErrUnknownMetric = errors.New("metric not available for trade")

// Snapshot is the heat map state for one metric and selection: what the
// page shows and what the heatmap API returns.
type Snapshot struct {
	Trade   domain.Trade             `json:"trade"`
	Metric  string                   `json:"metric"`
	Label   string                   `json:"metric_label"`
	Buckets map[domain.StateCode]int `json:"buckets"`
	Legend  domain.Legend            `json:"legend"`
	Detail  domain.DetailPanel       `json:"detail"`
	Missing []domain.StateCode       `json:"missing,omitempty"`
	Classes map[string]string        `json:"class_labels,omitempty"`

	metric domain.Metric
	set    *domain.MetricSet
}

// NewSnapshot drives a fresh session to metric m with state selected (an
// empty or unknown state leaves nothing selected).
func NewSnapshot(ds *domain.Dataset, entry catalog.Entry, m domain.Metric, state domain.StateCode) (*Snapshot, error) {
	set := ds.Metrics(entry.Labels())
	if !set.Has(m) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m.ID())
	}

	sess := domain.NewSession(set)
	sess.SelectMetric(m)
	if state != "" {
		sess.ActivateState(state)
	}

	buckets := sess.ComputeBuckets()
	snap := &Snapshot{
		Trade:   ds.Trade,
		Metric:  m.ID(),
		Label:   m.Label(),
		Buckets: buckets,
		Legend:  sess.Legend(),
		Detail:  sess.Detail(),
		Classes: set.ClassLabels,
		metric:  m,
		set:     set,
	}
	for _, code := range domain.States() {
		if _, ok := buckets[code]; !ok {
			snap.Missing = append(snap.Missing, code)
		}
	}
	return snap, nil
}

// Selected returns the selected state, or "" for none.
func (s *Snapshot) Selected() domain.StateCode {
	return s.Detail.State
}
