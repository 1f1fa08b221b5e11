package service

import "errors"

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("specmem: client is closed")

// ErrEmptyQuery rejects searches with no query text.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// ErrNoDatabase indicates a database-touching method was called on a
// service constructed without a database handle.
var ErrNoDatabase = errors.New("no database attached")

// ErrQueueFull rejects new embedding requests when the in-memory callback
// map has reached its cap. Callers should retry later or embed directly.
var ErrQueueFull = errors.New("embedding queue is full")

// ErrTicketExpired resolves tickets whose result did not arrive within the
// queue's max age. The database row survives; only the waiter gives up.
var ErrTicketExpired = errors.New("embedding ticket expired before a result arrived")

// ErrDrainActive reports that another drain is already running in this
// process. Claimed rows are locked per process, so a second drain would
// only spin.
var ErrDrainActive = errors.New("queue drain already in progress")
