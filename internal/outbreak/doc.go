// Package outbreak implements the outbreak detection and radar engine.
//
// It ingests crowd-sourced disease observations tagged with a geohash5 cell
// and a crop, and answers two questions: whether disease activity in a cell is
// anomalous relative to that cell's own history, and whether an aggregate may
// be shown at all under the minimum group size (k-anonymity) rule.
//
// The engine is stateless. Every operation is a function of its inputs plus
// reads through ReportRepository; multi-read operations fan out concurrently
// and fail as a whole if any read fails. Deadlines and cancellation come from
// the caller's context.
package outbreak
