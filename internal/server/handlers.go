package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/encoder"
	"example.com/druglib/internal/inspect"
	"example.com/druglib/internal/library"
	"example.com/druglib/internal/manifest"
	"example.com/druglib/internal/report"
)

// maxBody bounds request bodies; a hex image is 139,264 characters.
const maxBody = 8 << 20

type encodeResponse struct {
	Name        string        `json:"name"`
	Version     string        `json:"version"`
	File        string        `json:"file"`
	Hex         string        `json:"hex"`
	Sha256      string        `json:"sha256"`
	TransferCRC string        `json:"transferCrc"`
	LayerCounts []int         `json:"layerCounts"`
	MapEntries  int           `json:"mapEntries"`
	Warnings    []string      `json:"warnings"`
	Artifacts   []ArtifactRef `json:"artifacts"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := s.requestInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	d, err := library.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	strict := s.strict
	if v := r.URL.Query().Get("strict"); v != "" {
		strict, _ = strconv.ParseBool(v)
	}

	if err := s.acquire(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}
	defer s.release()

	res, err := encoder.Encode(d, encoder.Options{StrictReferences: strict})
	if err != nil {
		writeError(w, encodeStatus(err), "%v", err)
		return
	}
	rep, err := inspect.Inspect(res.Image)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "inspect: %v", err)
		return
	}
	name := encoder.FileName(d.Name, d.Version, time.Now())
	hexText := res.Hex()
	arts, err := s.storeEncoded(d, name, hexText, rep)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store: %v", err)
		return
	}
	warnings := make([]string, 0, len(res.Warnings))
	for _, wn := range res.Warnings {
		warnings = append(warnings, wn.String())
	}
	common.Logf("encoded %s (%d warnings)", name, len(warnings))
	writeJSON(w, http.StatusOK, encodeResponse{
		Name:        d.Name,
		Version:     d.Version,
		File:        name,
		Hex:         hexText,
		Sha256:      rep.Sha256,
		TransferCRC: rep.TransferCRC,
		LayerCounts: res.LayerCounts,
		MapEntries:  res.MapEntries,
		Warnings:    warnings,
		Artifacts:   arts,
	})
}

// storeEncoded writes the hex image, the optional PDF report and a manifest
// covering both, and registers them as artifacts.
func (s *Server) storeEncoded(d *library.Descriptor, name, hexText string, rep *inspect.Report) ([]ArtifactRef, error) {
	hexPath, err := common.WriteFile(s.imagesDir, name, []byte(hexText))
	if err != nil {
		return nil, err
	}
	paths := []string{hexPath}
	kinds := []string{"image"}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if s.pdf {
		pdfPath := filepath.Join(s.reportsDir, base+".pdf")
		opts := report.PDFOptions{QRSize: s.qrSize, GeneratedAt: time.Now()}
		if err := report.SaveInspectionPDF(rep, pdfPath, opts); err != nil {
			return nil, err
		}
		paths = append(paths, pdfPath)
		kinds = append(kinds, "report")
	}
	m, err := manifest.Build(manifest.Library{Name: d.Name, Version: d.Version, TransferCRC: rep.TransferCRC}, paths)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(s.reportsDir, base+".manifest.json")
	if err := manifest.Save(m, manifestPath); err != nil {
		return nil, err
	}
	paths = append(paths, manifestPath)
	kinds = append(kinds, "manifest")

	refs := make([]ArtifactRef, 0, len(paths))
	for i, p := range paths {
		art, err := s.addArtifact(p, kinds[i])
		if err != nil {
			return nil, err
		}
		refs = append(refs, toRef(art))
	}
	return refs, nil
}

// requestInput returns the stored artifact named by ?artifact= or the
// request body.
func (s *Server) requestInput(r *http.Request) ([]byte, error) {
	if name := r.URL.Query().Get("artifact"); name != "" {
		art, ok := s.getArtifact(name)
		if !ok {
			return nil, fmt.Errorf("artifact %s not found", name)
		}
		return os.ReadFile(art.Path)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func encodeStatus(err error) int {
	var cfgErr *library.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, encoder.ErrSectionSize), errors.Is(err, encoder.ErrUnresolvedReference):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleInspect verifies a hex image given as the request body or as the
// name of a stored artifact (?artifact=). With ?stream=true the record
// failures are streamed as NDJSON followed by the summary; with
// ?format=pdf the PDF report is returned.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	hexText, err := s.requestInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	sections, err := inspect.Split(string(hexText))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	image := make([]byte, 0, encoder.ImageSize)
	for _, sec := range sections {
		image = append(image, sec...)
	}
	rep, err := inspect.Inspect(image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	switch {
	case q.Get("stream") == "true":
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, f := range rep.Failures {
			if err := writer.WriteRecord(f); err != nil {
				return
			}
		}
		_ = writer.WriteObject(map[string]any{
			"type":        "summary",
			"ok":          rep.OK,
			"library":     rep.Library,
			"sha256":      rep.Sha256,
			"transferCrc": rep.TransferCRC,
			"failures":    len(rep.Failures),
		})
	case q.Get("format") == "pdf":
		data, err := report.RenderInspectionPDF(rep, report.PDFOptions{QRSize: s.qrSize, GeneratedAt: time.Now()})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render pdf: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/artifacts")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		writeJSON(w, http.StatusOK, struct {
			Artifacts []ArtifactRef `json:"artifacts"`
		}{Artifacts: s.listArtifacts()})
		return
	}
	art, ok := s.getArtifact(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"artifacts": len(s.listArtifacts()),
	})
}
