// Package workflow orchestrates title searches through the pipeline stages.
//
// The manager polls the queue for searches ready to process, claims one per
// worker, and drives it through scraping, analysis, and report generation in
// a single claim. Stage boundaries are the only points where cancellation is
// honored and checkpoints are advanced; transient stage failures are retried
// in place with exponential backoff until the retry ceiling is reached.
package workflow
