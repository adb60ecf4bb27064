// Package strategy implements the four request resolution strategies:
// cache-first, network-first, stale-while-revalidate, and navigation with
// offline fallback. Each strategy reads and writes one cache namespace and
// fetches upstream through a Fetcher.
//
// Background work (refresh-on-hit, stale-while-revalidate revalidation) is
// detached from the request context: a page navigating away mid-fetch does
// not cancel a cache-only update.
package strategy
