package domain

import "math"

// NumBuckets is the number of heat levels on the map (heat-0 .. heat-7).
const NumBuckets = 8

// Bounds returns the minimum and maximum of values. ok is false for an
// empty table.
func Bounds(values map[StateCode]float64) (lo, hi float64, ok bool) {
	first := true
	for _, v := range values {
		if first {
			lo, hi, first = v, v, false
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, !first
}

// ComputeBuckets assigns every state in values to one of n buckets by its
// position between the table's min and max. A degenerate range (all values
// equal) puts every state in bucket 0. States absent from values are absent
// from the result.
func ComputeBuckets(values map[StateCode]float64, n int) map[StateCode]int {
	out := make(map[StateCode]int, len(values))
	lo, hi, ok := Bounds(values)
	if !ok {
		return out
	}

	span := hi - lo
	for code, v := range values {
		normalized := 0.0
		if span > 0 {
			normalized = (v - lo) / span
		}
		out[code] = clampBucket(int(math.Floor(normalized*float64(n))), n)
	}
	return out
}

func clampBucket(b, n int) int {
	if b < 0 {
		return 0
	}
	if b > n-1 {
		return n - 1
	}
	return b
}
