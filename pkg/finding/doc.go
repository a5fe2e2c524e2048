// Package finding holds the aggregated data model of an assessment: the Run
// produced by the coordinator and the Summary folded from its results.
//
// Summarize is pure and never reorders results; display order is always
// registry declaration order.
package finding
