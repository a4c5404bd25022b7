// Package bulk persists an upload of SIM card records in fixed-size chunks
// with all-or-nothing semantics.
//
// Chunks are inserted strictly one after another. The first chunk that fails
// stops the run; if earlier chunks were committed, every record carrying the
// upload's batch ID is deleted with a single compensating call. Rollback is
// best-effort: a failed delete is reported in the Result, never retried.
//
// Callers must give each upload a batch ID no other in-flight upload uses,
// because rollback deletes by batch ID.
package bulk
