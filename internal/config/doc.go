// Package config provides configuration structures and utilities for scoutgraph.
//
// Two layers exist. Config is the process configuration assembled from CLI
// flags and the optional .scoutgraph YAML file. RunConfig is the runtime
// configuration kept as key/value rows in the database, re-read by the
// orchestrator on every iteration so operators can retune a running crawl.
package config
