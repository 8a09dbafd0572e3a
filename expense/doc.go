// Package expense implements the expense tracker's storage engine and its
// category provider.
//
// A Store owns a single "expenses" table in either SQLite (the default, run in
// WAL mode) or PostgreSQL. Every operation acquires a pooled connection for its
// own statement and releases it before returning; no transaction spans calls.
//
// Errors come in two kinds. Open returns an *InitError (matching ErrInit) when
// the store cannot be made ready, which callers treat as fatal. All later
// operations wrap driver failures in an *OpError (matching ErrOperational),
// which callers report per request.
package expense
