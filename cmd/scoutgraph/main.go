// Package main provides the entry point for the scoutgraph CLI.
//
// scoutgraph walks a social graph breadth-first from seed handles, scores
// every discovered profile against audience criteria and keeps the ones
// that pass together with their public contact channels.
//
// Usage:
//
//	scoutgraph seed add <handle>...
//	scoutgraph identity add <handle> --password-stdin
//	scoutgraph run
//
// See --help for all available options.
package main

func main() {
	Execute()
}
