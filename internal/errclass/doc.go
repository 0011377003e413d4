// Package errclass maps raw stage failures into structured error records.
//
// Classification is pure and rule-ordered: the same raw failure always yields
// the same category, severity, and transience.
package errclass
