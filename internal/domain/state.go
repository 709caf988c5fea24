package domain

import (
	"sort"
	"strings"
)

// StateCode is a two-letter U.S. state abbreviation, e.g. "CA".
type StateCode string

// stateNames maps every supported state to its display name. DC and the
// territories are intentionally absent: the map has exactly 50 shapes.
var stateNames = map[StateCode]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// allStates is the sorted list of state codes, built once.
var allStates = func() []StateCode {
	codes := make([]StateCode, 0, len(stateNames))
	for code := range stateNames {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}()

// States returns all 50 state codes in alphabetical order of code.
func States() []StateCode {
	out := make([]StateCode, len(allStates))
	copy(out, allStates)
	return out
}

// StatesByName returns all state codes ordered by display name, the order
// used for the state picker.
func StatesByName() []StateCode {
	out := States()
	sort.Slice(out, func(i, j int) bool { return stateNames[out[i]] < stateNames[out[j]] })
	return out
}

// Valid reports whether c is one of the 50 states.
func (c StateCode) Valid() bool {
	_, ok := stateNames[c]
	return ok
}

// Name returns the display name, or "" for unknown codes.
func (c StateCode) Name() string {
	return stateNames[c]
}

// ParseStateCode upper-cases and trims s and reports whether the result is
// a known state.
func ParseStateCode(s string) (StateCode, bool) {
	code := StateCode(strings.ToUpper(strings.TrimSpace(s)))
	return code, code.Valid()
}

// NormalizeShapeID strips the "state-" prefix and any part suffix from a
// shape identifier so that multi-part states address one code:
// "state-HI-2" -> "HI", "hi" -> "HI".
func NormalizeShapeID(id string) StateCode {
	id = strings.TrimPrefix(strings.TrimSpace(id), "state-")
	if i := strings.IndexByte(id, '-'); i >= 0 {
		id = id[:i]
	}
	return StateCode(strings.ToUpper(id))
}
