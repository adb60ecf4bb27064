// Package worker assembles the Vibely offline sync worker: request
// interception over the cache strategies, offline mutation capture into the
// durable action queue, playlist audio precaching on page request, page
// session messaging over websockets, and the push notification bridge.
//
// The Worker type owns the whole assembly and follows the standard
// component lifecycle. Initialize performs install-time work: versioned
// cache buckets are created and the static precache list is populated
// best-effort. Start performs activate-time work: older cache versions are
// swept, connectivity is bound to the NATS connection, and the listeners
// open. A worker built without a NATS client runs entirely in memory.
package worker
