// Package model defines the core data structures used throughout scoutgraph.
//
// This package contains the following main types:
//   - SeedHandle, DiscoveredHandle: frontier records awaiting evaluation
//   - AcceptedCandidate: a candidate that passed every acceptance gate
//   - Identity: a scraping credential used by the pool
//   - Profile, ActivityItem: normalized data returned by a profile source
//   - ContactRecord, Rationale: evaluation and extraction results
//
// The models are serializable to JSON for export and database storage.
package model
