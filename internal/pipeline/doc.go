// Package pipeline evaluates frontier candidates.
//
// Every candidate runs through the same ordered steps: fetch the profile
// data, apply the acceptance criteria, extract contacts from accepted
// profiles, store the accepted candidate and enqueue the handles it follows
// one level deeper. A BatchProcessor runs one pipeline per candidate with a
// bounded number of concurrent workers and records each candidate's final
// status in the frontier.
package pipeline
