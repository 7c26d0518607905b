// Package api provides the HTTP API for speaker search and face search.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// DefaultTopK is used by /audio/search when top_k is omitted.
	DefaultTopK int

	// MaxUploadSize caps request bodies, in bytes.
	MaxUploadSize int
}
