// Package transport builds the HTTP clients scoutgraph uses to reach a
// profile source.
//
// Every identity in the credential pool gets its own client so that cookie
// jars are never shared. A client can egress directly, through an HTTP
// proxy, through a SOCKS5 proxy, or through an embedded Tor daemon started
// with tornago.
package transport
