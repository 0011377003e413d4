// Package reporting runs the generating stage: assembling the final title
// report document from the analysis products.
package reporting
