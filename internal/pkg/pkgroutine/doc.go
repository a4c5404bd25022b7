// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type bounds concurrency with a weighted semaphore, collects
// returned errors, and turns panics into errors so that background work (for
// example CSV upload processing) does not crash the process silently.
package pkgroutine
