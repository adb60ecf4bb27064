package strategy

import (
	"net/http"
	"strings"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
)

// defaultOfflineHTML is the self-contained fallback document served when a
// navigation fails both network and cache.
const defaultOfflineHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vibely — Offline</title>
<style>
body{font-family:system-ui,sans-serif;background:#0d0d14;color:#eee;
display:flex;align-items:center;justify-content:center;height:100vh;margin:0}
main{text-align:center;max-width:22rem}
h1{font-size:1.4rem}p{color:#9a9ab0}
</style>
</head>
<body>
<main>
<h1>You&rsquo;re offline</h1>
<p>Vibely can&rsquo;t reach the network right now. Your recent covers and
playlists are still available, and anything you do will sync once you&rsquo;re
back online.</p>
</main>
</body>
</html>
`

const offlineJSON = `{"error":"offline","message":"network unavailable and no cached response"}`

// acceptsHTML reports whether the request explicitly asks for HTML. A bare
// "*/*" (the fetch() default) does not count: API callers must get the JSON
// payload, not the offline document.
func acceptsHTML(header http.Header) bool {
	return strings.Contains(header.Get("Accept"), "text/html")
}

// offlineResponse builds the terminal navigation fallback: the offline HTML
// document, or a JSON error payload when the Accept header is not HTML.
func offlineResponse(header http.Header, html []byte) *cachestore.CachedResponse {
	if acceptsHTML(header) {
		return &cachestore.CachedResponse{
			Status: http.StatusServiceUnavailable,
			Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			Body:   html,
		}
	}
	return &cachestore.CachedResponse{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(offlineJSON),
	}
}
