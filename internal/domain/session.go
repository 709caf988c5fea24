package domain

import (
	"fmt"
	"sync"
)

// Placeholder strings shown by the detail panel when nothing is selected.
const (
	PlaceholderName        = "Select a State"
	PlaceholderValue       = "--"
	PlaceholderDescription = "Click on a state to view insurance metrics"
)

// DetailPanel is what the info card displays.
type DetailPanel struct {
	State       StateCode `json:"state,omitempty"`
	StateName   string    `json:"state_name"`
	Value       string    `json:"value"`
	MetricLabel string    `json:"metric_label"`
	Description string    `json:"description"`
}

// Selected reports whether the panel describes a state.
func (p DetailPanel) Selected() bool { return p.State != "" }

// Legend describes the gradient legend for the active metric.
type Legend struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	MinLabel string  `json:"min_label"`
	MaxLabel string  `json:"max_label"`
	HasData  bool    `json:"has_data"`
}

// Session is one viewer's interaction state over a trade's metrics: the
// active metric and at most one selected state. Mutations are serialized
// so concurrent interaction sources observe consistent snapshots.
type Session struct {
	set *MetricSet

	mu       sync.Mutex
	active   Metric
	selected StateCode
}

// NewSession starts on DefaultMetric with no selection.
func NewSession(set *MetricSet) *Session {
	return &Session{set: set, active: DefaultMetric}
}

// SelectMetric makes m the active metric. The selection is kept. m must be
// one of the set's metrics; anything else is a programming error and
// panics.
func (s *Session) SelectMetric(m Metric) {
	if !s.set.Has(m) {
		panic(fmt.Sprintf("domain: metric %q is not defined for this trade", m.ID()))
	}
	s.mu.Lock()
	s.active = m
	s.mu.Unlock()
}

// ActiveMetric returns the current metric.
func (s *Session) ActiveMetric() Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SelectedState returns the selected state and whether one is selected.
func (s *Session) SelectedState() (StateCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected != ""
}

// ActivateState toggles selection of code and returns the refreshed detail
// panel. Activating the selected state clears it; any other state replaces
// it. Unknown codes leave the selection untouched.
func (s *Session) ActivateState(code StateCode) DetailPanel {
	s.mu.Lock()
	if code.Valid() {
		if s.selected == code {
			s.selected = ""
		} else {
			s.selected = code
		}
	}
	active, selected := s.active, s.selected
	s.mu.Unlock()

	return s.detail(active, selected)
}

// ComputeBuckets returns the heat bucket of every state in the active table.
func (s *Session) ComputeBuckets() map[StateCode]int {
	return ComputeBuckets(s.set.Values(s.ActiveMetric()), NumBuckets)
}

// Detail returns the detail panel for the current selection.
func (s *Session) Detail() DetailPanel {
	s.mu.Lock()
	active, selected := s.active, s.selected
	s.mu.Unlock()
	return s.detail(active, selected)
}

// Legend returns the min/max of the active table with its end labels.
func (s *Session) Legend() Legend {
	m := s.ActiveMetric()
	lo, hi, ok := Bounds(s.set.Values(m))
	l := Legend{Min: lo, Max: hi, HasData: ok, MinLabel: "Low", MaxLabel: "High"}
	if m.ReverseScale() {
		l.MinLabel, l.MaxLabel = "Better", "Worse"
	}
	return l
}

func (s *Session) detail(m Metric, code StateCode) DetailPanel {
	p := DetailPanel{MetricLabel: m.Label()}
	if code == "" {
		p.StateName = PlaceholderName
		p.Value = PlaceholderValue
		p.Description = PlaceholderDescription
		return p
	}

	p.State = code
	p.StateName = code.Name()
	p.Description = m.Description(s.set.ClassLabel(m.ClassCode))
	p.Value = PlaceholderValue
	if v, ok := s.set.Format(m, code); ok {
		p.Value = v
	}
	return p
}
