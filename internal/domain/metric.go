package domain

import (
	"fmt"
	"strings"
)

// MetricKind enumerates the closed set of metric variants.
type MetricKind int

const (
	// KindPremium is GL premium as a percentage of revenue (range valued).
	KindPremium MetricKind = iota + 1
	// KindSavings is GL savings as a percentage of premium.
	KindSavings
	// KindCompetitiveness is the carrier competitiveness percentile.
	KindCompetitiveness
	// KindWCRate is the workers' comp rate per $100 for one class code.
	KindWCRate
)

// Metric identifies one displayable table. ClassCode is set only for
// KindWCRate.
type Metric struct {
	Kind      MetricKind
	ClassCode string
}

// Identifiers accepted at the boundary.
const (
	idPremium         = "premiumPct"
	idSavings         = "savingsPct"
	idCompetitiveness = "competitiveness"
	idWCRate          = "wcRate"
)

// DefaultMetric is the metric a new session starts on.
var DefaultMetric = Premium()

// Premium returns the GL premium metric.
func Premium() Metric { return Metric{Kind: KindPremium} }

// Savings returns the GL savings metric.
func Savings() Metric { return Metric{Kind: KindSavings} }

// Competitiveness returns the carrier competitiveness metric.
func Competitiveness() Metric { return Metric{Kind: KindCompetitiveness} }

// WCRate returns the workers' comp metric for classCode.
func WCRate(classCode string) Metric { return Metric{Kind: KindWCRate, ClassCode: classCode} }

// ParseMetric converts a boundary identifier into a Metric. For the WC
// family the class code may be embedded ("wcRate5437") or passed separately
// (id "wcRate", classCode "5437"). Whether the class code exists for a trade
// is checked by the caller against its MetricSet.
func ParseMetric(id, classCode string) (Metric, error) {
	// The "gl" spellings are the names used by earlier page payloads.
	switch strings.TrimSpace(id) {
	case idPremium, "glPremiumPct", "glPremium":
		return Premium(), nil
	case idSavings, "glSavingsPct", "glSavings":
		return Savings(), nil
	case idCompetitiveness, "glCompetitiveness":
		return Competitiveness(), nil
	}

	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, idWCRate) {
		return Metric{}, fmt.Errorf("unknown metric %q", id)
	}
	code := strings.TrimPrefix(id, idWCRate)
	if code == "" {
		code = strings.TrimSpace(classCode)
	}
	if !isClassCode(code) {
		return Metric{}, fmt.Errorf("invalid class code %q for metric %q", code, id)
	}
	return WCRate(code), nil
}

// ID returns the boundary identifier, the inverse of ParseMetric.
func (m Metric) ID() string {
	switch m.Kind {
	case KindPremium:
		return idPremium
	case KindSavings:
		return idSavings
	case KindCompetitiveness:
		return idCompetitiveness
	case KindWCRate:
		return idWCRate + m.ClassCode
	default:
		return ""
	}
}

func (m Metric) String() string { return m.ID() }

// Label is the short heading shown above a value.
func (m Metric) Label() string {
	switch m.Kind {
	case KindPremium:
		return "GL Premium as % of Revenue"
	case KindSavings:
		return "GL Savings as % of Premium"
	case KindCompetitiveness:
		return "GL Carrier Competitiveness"
	case KindWCRate:
		return fmt.Sprintf("WC Rate per $100 (Class %s)", m.ClassCode)
	default:
		return ""
	}
}

// Description explains the metric. classLabel names the WC class
// ("Carpentry-framing") and is ignored for other kinds.
func (m Metric) Description(classLabel string) string {
	switch m.Kind {
	case KindPremium:
		return "General Liability insurance premium as a percentage of contractor revenue"
	case KindSavings:
		return "Potential savings on General Liability insurance premiums"
	case KindCompetitiveness:
		return "Market competitiveness ranking based on number of carrier quotes"
	case KindWCRate:
		if classLabel == "" {
			return fmt.Sprintf("Workers' Comp rate for Class Code %s", m.ClassCode)
		}
		return fmt.Sprintf("Workers' Comp rate for Class Code %s (%s)", m.ClassCode, classLabel)
	default:
		return ""
	}
}

// ReverseScale reports whether lower values are better for this metric.
func (m Metric) ReverseScale() bool {
	return m.Kind == KindWCRate
}

func isClassCode(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
