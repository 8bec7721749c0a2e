// Package mail fetches Gmail messages and turns them into chunker Documents.
//
// The Gmail side (OAuth token cache, paginated listing, full message fetch,
// attachments) wraps google.golang.org/api/gmail/v1. The processing side
// cleans bodies (HTML stripped, URLs removed, whitespace collapsed) and builds
// one Document per message with its identifiers in the metadata.
package mail
