// Package contact extracts structured contact channels from profile text.
//
// The Extractor scans the bio, the external link and any extra descriptive
// text for email addresses, phone numbers, messaging and chat-app links,
// social network links and a primary website. Extraction is pure and
// deterministic for identical input.
package contact
