package domain

import (
	"fmt"
	"math"
	"strconv"
)

// PremiumRange is one state's GL premium entry. Midpoint drives the heat
// map; Display is what the detail panel shows.
type PremiumRange struct {
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Midpoint float64 `json:"midpoint"`
	Display  string  `json:"range"`
}

// MetricSet holds every table for one trade. It is read-only once built.
type MetricSet struct {
	Premium         map[StateCode]PremiumRange
	Savings         map[StateCode]float64
	Competitiveness map[StateCode]float64

	// WCRates is keyed by class code, in the order of ClassCodes.
	WCRates     map[string]map[StateCode]float64
	ClassCodes  []string
	ClassLabels map[string]string
}

// Metrics lists every metric the set can display, WC classes last.
func (s *MetricSet) Metrics() []Metric {
	out := []Metric{Premium(), Savings(), Competitiveness()}
	for _, code := range s.ClassCodes {
		out = append(out, WCRate(code))
	}
	return out
}

// Has reports whether m is displayable for this set. Non-WC metrics always
// are; a WC metric needs its class code.
func (s *MetricSet) Has(m Metric) bool {
	switch m.Kind {
	case KindPremium, KindSavings, KindCompetitiveness:
		return true
	case KindWCRate:
		_, ok := s.WCRates[m.ClassCode]
		return ok
	default:
		return false
	}
}

// Values projects the table for m onto plain numbers. Premium projects the
// midpoint. The returned map is a fresh copy.
func (s *MetricSet) Values(m Metric) map[StateCode]float64 {
	switch m.Kind {
	case KindPremium:
		out := make(map[StateCode]float64, len(s.Premium))
		for code, r := range s.Premium {
			out[code] = r.Midpoint
		}
		return out
	case KindSavings:
		return copyValues(s.Savings)
	case KindCompetitiveness:
		return copyValues(s.Competitiveness)
	case KindWCRate:
		return copyValues(s.WCRates[m.ClassCode])
	default:
		panic(fmt.Sprintf("domain: metric kind %d not handled", m.Kind))
	}
}

// Format renders the value of m for code using that metric's display rule.
// ok is false when the table has no entry for the state.
func (s *MetricSet) Format(m Metric, code StateCode) (string, bool) {
	switch m.Kind {
	case KindPremium:
		r, ok := s.Premium[code]
		if !ok {
			return "", false
		}
		return r.Display, true
	case KindSavings:
		v, ok := s.Savings[code]
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64) + "%", true
	case KindCompetitiveness:
		v, ok := s.Competitiveness[code]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%dth percentile", int(math.Round(v))), true
	case KindWCRate:
		v, ok := s.WCRates[m.ClassCode][code]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("$%.2f", v), true
	default:
		panic(fmt.Sprintf("domain: metric kind %d not handled", m.Kind))
	}
}

// ClassLabel returns the human label for a WC class code, if any.
func (s *MetricSet) ClassLabel(code string) string {
	return s.ClassLabels[code]
}

func copyValues(in map[StateCode]float64) map[StateCode]float64 {
	out := make(map[StateCode]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
