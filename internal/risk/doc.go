// Package risk grades encumbrance records and aggregates them into a 0-100
// report-level risk score with display bands.
package risk
