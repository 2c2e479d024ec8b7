package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// handleUpload stores descriptor (.json) and image (.hex) files so later
// encode and inspect requests can refer to them by artifact name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxBody); err != nil {
		writeError(w, http.StatusBadRequest, "parse multipart: %v", err)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveUploadedFile(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest, "save upload %s: %v", fh.Filename, err)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs})
}

func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (ArtifactRef, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".json" && ext != ".hex" {
		return ArtifactRef{}, fmt.Errorf("unsupported file type %q", ext)
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	dest, err := os.CreateTemp(s.uploadsDir, "upload-*"+ext)
	if err != nil {
		return ArtifactRef{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	if err := dest.Close(); err != nil {
		return ArtifactRef{}, err
	}
	art, err := s.addArtifact(dest.Name(), "upload")
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
