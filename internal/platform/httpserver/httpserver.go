// Package httpserver builds the http.Server hosting the bordereau API.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with a bounded header read. Every lifecycle operation
// runs under a short statement timeout, so no further server-side deadlines
// are needed here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
