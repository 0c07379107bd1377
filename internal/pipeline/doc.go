// Package pipeline turns one scopemux invocation into batch work. It
// expands the input arguments into units (containers to split or convert,
// source groups to merge), runs the units over a bounded worker pool, and
// reports every outcome three ways: the console log, the run manifest,
// and the aggregate RunStats the exit code derives from.
//
// Units are independent. A failed unit is recorded and the batch moves
// on; cancellation stops the pool at the next checkpoint and never
// leaves a half-written output behind (the writer commits by rename).
package pipeline
