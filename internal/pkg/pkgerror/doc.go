// Package pkgerror carries errors from the stores and usecases to the HTTP
// edge.
//
// Stores return the sentinels ErrNotFound and ErrConflict. Usecases wrap
// failures in *Error, which adds a user-facing message, a Type, a Code that
// maps to an HTTP status, and optional per-field details for validation
// failures.
package pkgerror
