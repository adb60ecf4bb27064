// Package vibely provides the offline-first sync worker for the Vibely app:
// request interception through versioned cache namespaces, a durable offline
// action queue, connectivity-driven synchronization, and a push notification
// bridge.
//
// # Architecture
//
// One worker process serves all page instances of an origin. Pages route
// their requests through the worker's interception endpoint and hold a
// websocket session for typed messages; the worker keeps durable state in
// NATS JetStream:
//
//	┌─────────────────────────────────────┐
//	│           Page sessions             │  websocket envelopes
//	│  (fetch via worker, typed messages) │  (protocol)
//	└──────────────────┬──────────────────┘
//	                   ↓
//	┌─────────────────────────────────────┐
//	│            Sync worker              │  router → strategy
//	│  (classify, resolve, capture)       │  executors
//	└──────────────────┬──────────────────┘
//	                   ↓
//	┌─────────────────────────────────────┐
//	│          NATS JetStream             │  KV buckets = cache tiers
//	│  (KV, streams, subjects)            │  stream = action queue
//	└─────────────────────────────────────┘
//
// Reads resolve through one of four strategies (cache-first, network-first,
// stale-while-revalidate, navigation-with-offline-fallback) chosen by
// configured allow-lists. Writes that fail while offline are captured into a
// durable FIFO queue and replayed in order on reconnect; replay confirms
// each action only on upstream success and halts on the first failure.
// Cache namespaces are versioned; activating a new version sweeps every
// older namespace, which is the only eviction mechanism.
//
// # Packages
//
// Core:
//   - cachestore: versioned cache namespaces over JetStream KV with an
//     in-process memory tier
//   - strategy: the resolution strategies and the upstream fetcher
//   - router: request classification against live allow-lists
//   - actionqueue: the durable offline mutation queue and its HTTP replayer
//   - connectivity: the online/offline state machine driving flush + refresh
//   - pushbridge: server pushes to tray notifications and click routing
//   - protocol: typed message envelopes between pages and the worker
//   - worker: the assembled component (sessions, interception, lifecycle)
//
// Infrastructure:
//   - natsclient: NATS connection management, JetStream and KV helpers
//   - config: versioned configuration with live-updatable allow-lists
//   - component: lifecycle contract, health reporting, NATS log streaming
//   - metric: prometheus registry and the worker's core metrics
//   - errors: classified error handling
//   - pkg/retry, pkg/cache, pkg/worker: shared utilities
//
// # Binary
//
// cmd/vibely-worker runs the worker. Without a reachable NATS broker it
// degrades to in-memory storage, keeping the app usable offline.
package vibely
