package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/encode", s.handleEncode)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/artifacts", s.handleArtifacts)
	mux.HandleFunc("/api/artifacts/", s.handleArtifacts)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}
