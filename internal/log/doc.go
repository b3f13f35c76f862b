// Package log provides slog constructors that never print credentials.
//
// scoutgraph handles account passwords, sealed credential blobs and
// source session cookies. SecureHandler masks attributes whose key or value
// looks like one of those before records reach the output handler.
package log
