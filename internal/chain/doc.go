// Package chain analyzes an ordered set of property-transfer records for
// breaks in the chain of title and builds an ownership timeline.
//
// The analyzer is pure: the same entry set always yields the same breaks,
// ownership summary, and notes.
package chain
