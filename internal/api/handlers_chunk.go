package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/pipeline"
	"github.com/dgallion1/pagechunk/internal/source"
)

// handleChunk accepts one document: a single file, or metadata.json with
// its page files, under the "files" form field ("file" also works).
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	files := make([]source.File, 0, len(headers))
	var total int64
	for _, fh := range headers {
		name := sanitizeFilename(fh.Filename)
		if name != source.MetadataFile && !source.IsSupportedExtension(name) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
			return
		}
		data, err := readPart(fh, maxBytes-total)
		if err != nil {
			jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		total += int64(len(data))
		files = append(files, source.File{Name: name, Data: data})
	}

	override, err := s.chunkingOverride(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(r.FormValue("document"), files, override)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info().
		Str("job_id", job.ID).
		Strs("files", job.Filenames).
		Int64("bytes", total).
		Msg("chunk job accepted")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"doc_id":     job.DocID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/chunk/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/chunk/%s/result", job.ID),
	})
}

func readPart(fh *multipart.FileHeader, remaining int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, remaining+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > remaining {
		return nil, errors.New("upload exceeds max size")
	}
	return data, nil
}

// chunkingOverride builds a per-job config from target_size, min_size,
// max_size and merging form values. It returns nil when none are set.
func (s *Server) chunkingOverride(r *http.Request) (*chunker.Config, error) {
	cfg := s.orchestrator.Processor().Chunking()
	set := false
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"target_size", &cfg.TargetSize},
		{"min_size", &cfg.MinSize},
		{"max_size", &cfg.MaxSize},
	} {
		v := r.FormValue(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", f.key)
		}
		*f.dst = n
		set = true
	}
	if v := r.FormValue("merging"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("merging must be true or false")
		}
		cfg.MergingEnabled = b
		set = true
	}
	if !set {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Server) handleChunkStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleChunkResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job not finished",
			"status": snap.Status,
		})
		return
	}
	out := job.Result()
	if out == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "job produced no result",
			"status": snap.Status,
			"errors": snap.Progress.Errors,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := out.WriteJSON(w); err != nil {
		s.log.Error().Err(err).Str("job_id", snap.ID).Msg("write result")
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
