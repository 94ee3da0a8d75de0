// Package dedupe provides query deduplication using a time-based cache
// so the chat client does not resend a query that is still in flight.
package dedupe
