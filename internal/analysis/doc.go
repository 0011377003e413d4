// Package analysis runs the analyzing stage: chain-of-title analysis and
// encumbrance risk scoring over the records collected during scraping.
package analysis
