package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTradeNotFound is returned by stores when a trade has no dataset.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrInvalidTrade is returned for trade names outside ^[a-z]+$.
	ErrInvalidTrade = errors.New("trade name must be lowercase letters only")
)

var tradeRe = regexp.MustCompile(`^[a-z]+$`)

// Trade names a contractor category, e.g. "carpenter".
type Trade string

// ParseTrade validates a trade name.
func ParseTrade(s string) (Trade, error) {
	if !tradeRe.MatchString(s) {
		return "", ErrInvalidTrade
	}
	return Trade(s), nil
}

// Title returns the trade capitalized for headings: "carpenter" -> "Carpenter".
func (t Trade) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// StateRecord is one state's row of a trade dataset.
type StateRecord struct {
	State           StateCode                  `json:"state"`
	PremiumLow      decimal.Decimal            `json:"gl_premium_low"`
	PremiumHigh     decimal.Decimal            `json:"gl_premium_high"`
	Savings         decimal.Decimal            `json:"gl_savings"`
	Competitiveness int                        `json:"gl_competitiveness"`
	WCRates         map[string]decimal.Decimal `json:"wc_rates"`
}

// PremiumRange derives the premium entry: midpoint of low/high and the
// "low% – high%" display string.
func (r StateRecord) PremiumRange() PremiumRange {
	mid := r.PremiumLow.Add(r.PremiumHigh).Div(decimal.NewFromInt(2))
	return PremiumRange{
		Low:      r.PremiumLow.InexactFloat64(),
		High:     r.PremiumHigh.InexactFloat64(),
		Midpoint: mid.InexactFloat64(),
		Display:  FormatPercent(r.PremiumLow) + " – " + FormatPercent(r.PremiumHigh),
	}
}

// FormatPercent renders d with at least one fractional digit and a "%"
// suffix: 5 -> "5.0%", 2.75 -> "2.75%".
func FormatPercent(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s = d.StringFixed(1)
	}
	return s + "%"
}

// Dataset is a trade's full upload.
type Dataset struct {
	Trade      Trade                     `json:"trade"`
	ClassCodes []string                  `json:"class_codes"`
	Records    map[StateCode]StateRecord `json:"records"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// NewDataset returns an empty dataset for trade with the given WC codes.
func NewDataset(trade Trade, classCodes ...string) *Dataset {
	return &Dataset{
		Trade:      trade,
		ClassCodes: classCodes,
		Records:    make(map[StateCode]StateRecord),
	}
}

// Clone returns a deep copy of d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Trade:      d.Trade,
		ClassCodes: append([]string(nil), d.ClassCodes...),
		Records:    make(map[StateCode]StateRecord, len(d.Records)),
		UpdatedAt:  d.UpdatedAt,
	}
	for code, r := range d.Records {
		rates := make(map[string]decimal.Decimal, len(r.WCRates))
		for k, v := range r.WCRates {
			rates[k] = v
		}
		r.WCRates = rates
		out.Records[code] = r
	}
	return out
}

// Summary returns the listing view of d.
func (d *Dataset) Summary() TradeSummary {
	return TradeSummary{
		Trade:      d.Trade,
		States:     len(d.Records),
		ClassCodes: append([]string(nil), d.ClassCodes...),
		UpdatedAt:  d.UpdatedAt,
	}
}

// TradeSummary is one line of the trade listing.
type TradeSummary struct {
	Trade      Trade     `json:"trade"`
	States     int       `json:"states"`
	ClassCodes []string  `json:"class_codes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Sorted returns the records ordered by state code.
func (d *Dataset) Sorted() []StateRecord {
	out := make([]StateRecord, 0, len(d.Records))
	for _, r := range d.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

// Missing lists the states with no record, in code order.
func (d *Dataset) Missing() []StateCode {
	var out []StateCode
	for _, code := range allStates {
		if _, ok := d.Records[code]; !ok {
			out = append(out, code)
		}
	}
	return out
}

// Complete reports whether every state has a record.
func (d *Dataset) Complete() bool {
	return len(d.Missing()) == 0
}

// Metrics builds the display tables. labels names WC class codes and may
// be nil.
func (d *Dataset) Metrics(labels map[string]string) *MetricSet {
	set := &MetricSet{
		Premium:         make(map[StateCode]PremiumRange, len(d.Records)),
		Savings:         make(map[StateCode]float64, len(d.Records)),
		Competitiveness: make(map[StateCode]float64, len(d.Records)),
		WCRates:         make(map[string]map[StateCode]float64, len(d.ClassCodes)),
		ClassCodes:      append([]string(nil), d.ClassCodes...),
		ClassLabels:     make(map[string]string, len(d.ClassCodes)),
	}
	for _, code := range d.ClassCodes {
		set.WCRates[code] = make(map[StateCode]float64, len(d.Records))
		if label, ok := labels[code]; ok {
			set.ClassLabels[code] = label
		}
	}

	for state, r := range d.Records {
		set.Premium[state] = r.PremiumRange()
		set.Savings[state] = r.Savings.InexactFloat64()
		set.Competitiveness[state] = float64(r.Competitiveness)
		for code, rate := range r.WCRates {
			if table, ok := set.WCRates[code]; ok {
				table[state] = rate.InexactFloat64()
			}
		}
	}
	return set
}
