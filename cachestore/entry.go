package cachestore

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Purpose identifies which of the three cache tiers an entry belongs to.
type Purpose string

// The three cache purposes. Exactly one namespace per purpose is current.
const (
	PurposeStatic  Purpose = "static"
	PurposeDynamic Purpose = "dynamic"
	PurposeImage   Purpose = "images"
)

// Purposes lists all cache purposes in namespace-creation order.
func Purposes() []Purpose {
	return []Purpose{PurposeStatic, PurposeDynamic, PurposeImage}
}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeStatic, PurposeDynamic, PurposeImage:
		return true
	}
	return false
}

// NamespaceName builds the bucket name for an app, purpose, and version,
// e.g. "vibely-images-v3". Version bump is the only namespace-wide
// invalidation primitive.
func NamespaceName(app string, purpose Purpose, version string) string {
	return fmt.Sprintf("%s-%s-%s", app, purpose, version)
}

// RequestKey builds the cache key for a request: method plus full URL.
func RequestKey(method, url string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + url
}

// EncodeKey converts a request key into the restricted KV key charset.
// base64url output uses only [A-Za-z0-9-_], all valid KV key characters.
func EncodeKey(requestKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(requestKey))
}

// DecodeKey reverses EncodeKey.
func DecodeKey(encoded string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CachedResponse is the stored form of an upstream response. It is
// JSON-encoded in the durable bucket and held as-is in the memory tier.
type CachedResponse struct {
	RequestKey string      `json:"request_key"`
	Status     int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Clone returns a deep copy so callers can mutate headers and body without
// affecting the cached original.
func (r *CachedResponse) Clone() *CachedResponse {
	if r == nil {
		return nil
	}
	out := &CachedResponse{
		RequestKey: r.RequestKey,
		Status:     r.Status,
		StoredAt:   r.StoredAt,
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Body != nil {
		out.Body = make([]byte, len(r.Body))
		copy(out.Body, r.Body)
	}
	return out
}

// Write writes the cached response to an http.ResponseWriter.
func (r *CachedResponse) Write(w http.ResponseWriter) error {
	for k, vals := range r.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}
