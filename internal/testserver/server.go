package testserver

import (
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// Server is a Backend listening on a local httptest server
type Server struct {
	*Backend
	httpServer *httptest.Server
	URL        string
}

// NewServer starts a Backend on a random local port. Close it when done.
func NewServer(opts Options) *Server {
	gin.SetMode(gin.TestMode)

	b := New(opts)
	hs := httptest.NewServer(b.Handler())
	return &Server{Backend: b, httpServer: hs, URL: hs.URL}
}

// Close shuts the listener down
func (s *Server) Close() {
	s.httpServer.Close()
}
