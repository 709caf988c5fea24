package csvio

import (
	"fmt"
	"io"

	"github.com/couchcryptid/insurance-maps/internal/domain"
)

// Report summarizes a parsed dataset for validation tooling.
type Report struct {
	Trade      domain.Trade
	Rows       int
	ClassCodes []string
	Missing    []domain.StateCode
	Warnings   []string
}

// Complete reports whether every state is present.
func (r Report) Complete() bool { return len(r.Missing) == 0 }

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Check builds a Report for ds. Missing states are data defects that do not
// block an import but leave holes in the map.
func Check(ds *domain.Dataset) Report {
	r := Report{
		Trade:      ds.Trade,
		Rows:       len(ds.Records),
		ClassCodes: append([]string(nil), ds.ClassCodes...),
		Missing:    ds.Missing(),
	}
	for _, code := range r.Missing {
		r.warnf("no data for %s (%s)", code, code.Name())
	}
	for _, rec := range ds.Sorted() {
		if rec.PremiumLow.Equal(rec.PremiumHigh) {
			r.warnf("%s: GL premium range is a single value (%s%%)", rec.State, rec.PremiumLow)
		}
		for _, code := range ds.ClassCodes {
			if _, ok := rec.WCRates[code]; !ok {
				r.warnf("%s: no WC rate for class %s", rec.State, code)
			}
		}
	}
	return r
}

// Print writes a human-readable summary of r.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "trade:       %s\n", r.Trade)
	fmt.Fprintf(w, "rows:        %d\n", r.Rows)
	fmt.Fprintf(w, "class codes: %v\n", r.ClassCodes)
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "  WARN  %s\n", msg)
	}
	if r.Complete() {
		fmt.Fprintln(w, "PASS: all 50 states present")
		return
	}
	fmt.Fprintf(w, "FAIL: %d states missing\n", len(r.Missing))
}
