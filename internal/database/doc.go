// Package database provides SQLite-based storage for scoutgraph.
//
// The DB stores:
//   - the handle registry that gives every handle exactly one kind
//   - seed, discovered and accepted records
//   - scraping identities with sealed credentials and usage counters
//   - the runtime configuration key/value table
//   - the activity log
//
// SQLite (via modernc.org/sqlite) keeps the crawl state in a single CGO-free
// file. The connection pool is limited to one connection, which serializes
// writers; the handle_registry primary key resolves duplicate discovery races.
package database
