// Package report renders crawl statistics and accepted-candidate exports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - CSVWriter: spreadsheet export with the fixed export column order
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: tables for sharing and documentation
//
// Writers implement the Writer interface and can be composed with
// MultiWriter.
package report
