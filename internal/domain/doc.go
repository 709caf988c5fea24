// Package domain models per-state insurance cost metrics for contractor
// trades and the heat-map interaction built on top of them.
//
// # Data Source
//
// Each trade (carpenter, electrician, plumber, ...) owns one dataset of 50
// rows, one per U.S. state, uploaded as CSV:
//
//	State,GL_Premium_Low,GL_Premium_High,GL_Savings,GL_Competitiveness,WC_Rate_5437,WC_Rate_5645
//	GA,0.6,1.9,47.3,75,8.98,43.42
//
// The workers' compensation columns are keyed by NCCI classification code.
// Most trades carry two codes (carpenter: 5437 framing, 5645 interior),
// some carry one.
//
// # Metrics
//
// A dataset exposes four metric kinds:
//
//	Premium         GL premium as % of revenue. Stored as a low/high range;
//	                the heat map uses the midpoint, the detail panel shows
//	                the range string, e.g. "0.6% – 1.9%".
//	Savings         GL savings as % of premium, shown as "47.3%".
//	Competitiveness carrier competitiveness percentile, shown as "75th percentile".
//	WCRate(code)    WC rate per $100 of payroll for one class code, shown as "$8.98".
//
// # Heat Buckets
//
// For the active metric, every state value v is placed between the
// table's min and max and mapped to one of [NumBuckets] buckets:
//
//	bucket = clamp(floor((v - min) / (max - min) * 8), 0, 7)
//
// When every state holds the same value the range is degenerate and all
// states land in bucket 0. States missing from the table get no bucket and
// render with neutral styling.
//
// WC metrics are "reverse scale": a lower rate is better. That only changes
// the legend labels ("Better"/"Worse" instead of "Low"/"High"); bucket
// assignment is never inverted.
//
// # Selection
//
// A [Session] holds the active metric and at most one selected state.
// Activating the selected state again clears the selection; activating a
// different state switches to it directly. Codes outside the 50 states are
// ignored.
package domain
