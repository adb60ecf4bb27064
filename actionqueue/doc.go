// Package actionqueue buffers user mutations performed while offline and
// replays them when connectivity returns.
//
// The queue is a durable FIFO: actions carry strictly increasing ids, are
// replayed in id order, and are removed only after the remote endpoint
// confirms them with a 2xx. The first replay failure halts the cycle so
// causally dependent mutations (a playlist_updated after its
// playlist_created) never apply out of order; the remainder stays queued for
// the next flush trigger.
//
// The queue has a single writer (the worker's page sessions) and a single
// reader (the connectivity monitor's flush). Actions enqueued while a flush
// is running wait for the next cycle: flush operates on a snapshot taken at
// start.
package actionqueue
