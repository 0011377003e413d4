// Package discovery runs the scraping stage: collecting property records for
// a search through an injected RecordSource capability.
package discovery
