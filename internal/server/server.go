package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Server coordinates HTTP handlers and keeps the images, reports and
// uploads it produced for later download.
type Server struct {
	artifacts  *ArtifactStore
	imagesDir  string
	reportsDir string
	uploadsDir string
	sem        chan struct{}
	strict     bool
	pdf        bool
	qrSize     int
}

// Options configures server creation.
type Options struct {
	StorageDir       string
	Concurrency      int
	StrictReferences bool
	PDF              bool
	QRSize           int
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of artifacts by file name.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer prepares the storage layout under opts.StorageDir and indexes
// any images and reports left there by an earlier run.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = filepath.Join(os.TempDir(), "libd")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		imagesDir:  filepath.Join(storageDir, "images"),
		reportsDir: filepath.Join(storageDir, "reports"),
		uploadsDir: filepath.Join(storageDir, "uploads"),
		sem:        make(chan struct{}, concurrency),
		strict:     opts.StrictReferences,
		pdf:        opts.PDF,
		qrSize:     opts.QRSize,
	}
	dirs := []struct{ path, kind string }{
		{s.imagesDir, "image"},
		{s.reportsDir, "report"},
		{s.uploadsDir, "upload"},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(d.path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := s.addArtifact(filepath.Join(d.path, e.Name()), d.kind); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Close releases server resources. Stored artifacts are kept.
func (s *Server) Close() error {
	return nil
}

// acquire blocks until an encode slot is free or ctx is done.
func (s *Server) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) release() { <-s.sem }

func (s *Server) addArtifact(path, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	name := filepath.Base(path)
	art := Artifact{
		Path:        path,
		Name:        name,
		ContentType: guessContentType(name),
		Size:        info.Size(),
		Kind:        kind,
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[name] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(name string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[name]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func guessContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	case ".hex", ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
