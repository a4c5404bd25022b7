// Package pkguid provides helpers for generating unique identifiers.
//
// Upload batches and events are keyed by time-ordered UUIDv7 strings; stored
// SIM card rows and activity entries get Snowflake int64 IDs.
package pkguid
