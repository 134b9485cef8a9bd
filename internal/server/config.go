package server

// Config holds the HTTP surface settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
}
