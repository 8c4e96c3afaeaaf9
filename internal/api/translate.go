package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/seantiz/babelpdf/internal/jobs"
	"github.com/seantiz/babelpdf/internal/model"
	"github.com/seantiz/babelpdf/internal/settings"
	"github.com/seantiz/babelpdf/internal/translator"
)

const maxUploadSize = 100 << 20 // 100 MB

// uploadResponse describes a stored upload, ready to be referenced by a
// translation start request.
type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Pages    int    `json:"pages"`
}

// startRequest is the JSON body for POST /api/translate/start.
type startRequest struct {
	FileID   string `json:"file_id"`
	LangFrom string `json:"lang_from"`
	LangTo   string `json:"lang_to"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		s.writeError(w, http.StatusBadRequest, "missing filename")
		return
	}

	fileID := model.NewFileID()
	destPath := filepath.Join(s.layout.UploadsDir(u.ID), fileID+"_"+sanitizeFilename(filename))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		s.logger.Error("create uploads dir", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	size, err := copyToFile(destPath, file)
	if err != nil {
		s.logger.Error("store upload", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	// Sniff the actual content; the client-supplied extension and
	// Content-Type are not trusted.
	mtype, err := mimetype.DetectFile(destPath)
	if err != nil || !mtype.Is("application/pdf") {
		_ = os.Remove(destPath)
		s.writeError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	pages, err := pdfapi.PageCountFile(destPath)
	if err != nil {
		_ = os.Remove(destPath)
		s.writeError(w, http.StatusBadRequest, "PDF is corrupt or unreadable")
		return
	}

	s.logger.Info("file uploaded",
		"user_id", u.ID, "file_id", fileID, "filename", filename, "size", size, "pages", pages)

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		FileID:   fileID,
		Filename: filename,
		Size:     size,
		Pages:    pages,
	})
}

func (s *Server) handleStartTranslation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FileID == "" {
		s.writeError(w, http.StatusBadRequest, "file_id is required")
		return
	}
	if req.LangFrom == "" {
		req.LangFrom = "en"
	}
	if req.LangTo == "" {
		req.LangTo = "zh"
	}

	sourcePath, filename, err := s.findUpload(u.ID, req.FileID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "uploaded file not found")
		return
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "uploaded file not found")
		return
	}

	raw, err := s.store.GetConfig(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("load config for translation", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return
	}
	doc := settings.FromStored(raw)

	provider, err := translator.FromService(doc.TranslationService)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := model.NewID()
	outputDir := s.layout.OutputDir(u.ID, jobID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		s.logger.Error("create output dir", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start translation")
		return
	}

	watermark := ""
	if doc.PDFOutput.WatermarkEnabled {
		watermark = doc.PDFOutput.WatermarkText
	}

	job := &model.Job{
		ID:         jobID,
		UserID:     u.ID,
		Filename:   filename,
		FileSize:   info.Size(),
		SourcePath: sourcePath,
		OutputDir:  outputDir,
		CreatedAt:  time.Now().UTC(),
	}

	treq := translator.Request{
		SourcePath:    sourcePath,
		OutputDir:     outputDir,
		LangIn:        req.LangFrom,
		LangOut:       req.LangTo,
		OutputMode:    doc.PDFOutput.OutputMode,
		WatermarkText: watermark,
		Threads:       doc.Advanced.EngineThreads,
		RateLimit:     doc.Advanced.RateLimit,
		Provider:      provider,
	}

	if err := s.runner.Submit(r.Context(), job, treq); err != nil {
		s.logger.Error("submit translation", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start translation")
		return
	}

	s.logger.Info("translation started",
		"job_id", jobID, "user_id", u.ID, "filename", filename,
		"service", doc.TranslationService.ServiceType)

	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Already finished: emit the final snapshot and close the stream.
	if model.IsTerminal(job.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSESnapshot(w, *job)
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe before emitting the opening snapshot. Subscribing to a
	// topic that closed in the meantime yields a closed channel, so the
	// loop below exits immediately instead of hanging.
	ch, unsub := s.runner.Broker().Subscribe(job.ID)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	if err := writeSSESnapshot(w, *job); err != nil {
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				// Job finished; re-read the final state so the client sees
				// the terminal status even if the last publish was dropped.
				if final, err := s.jobs.Get(r.Context(), job.ID); err == nil {
					_ = writeSSESnapshot(w, *final)
				}
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSESnapshot(w, snapshot); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	if job.Status != model.StatusCompleted {
		s.writeError(w, http.StatusBadRequest, "translation is not finished")
		return
	}

	variant := r.URL.Query().Get("type")
	var path string
	switch variant {
	case "":
		var found bool
		variant, path, found = job.PreferredOutput()
		if !found {
			s.writeError(w, http.StatusNotFound, "no output file available")
			return
		}
	case model.VariantMono, model.VariantDual:
		path = job.OutputFiles[variant]
		if path == "" {
			s.writeError(w, http.StatusNotFound, "requested output not available")
			return
		}
	default:
		s.writeError(w, http.StatusBadRequest, "type must be mono or dual")
		return
	}

	s.serveArtifact(w, r, path, downloadName(job.Filename, variant))
}

// loadJob fetches the job named by the id URL param and enforces ownership:
// regular users see only their own jobs, admins see all. Writes the error
// response itself and reports ok=false when the caller should stop.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	u := userFrom(r)
	id := chi.URLParam(r, "id")

	job, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "translation job not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return nil, false
	}
	if job.UserID != u.ID && !u.IsAdmin() {
		s.writeError(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	return job, true
}

// findUpload resolves an upload id to its stored path and original
// filename. Uploads are stored as <file_id>_<original name> in the user's
// uploads directory.
func (s *Server) findUpload(userID, fileID string) (path, filename string, err error) {
	dir := s.layout.UploadsDir(userID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", err
	}
	prefix := fileID + "_"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(dir, e.Name()), strings.TrimPrefix(e.Name(), prefix), nil
		}
	}
	return "", "", os.ErrNotExist
}

// serveArtifact streams a produced PDF as an attachment.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, path, name string) {
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "output file is missing on disk")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// copyToFile writes the reader to path and returns the number of bytes
// written.
func copyToFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

// downloadName derives the attachment filename for a produced variant:
// the source name without extension, the variant, and a .pdf suffix.
func downloadName(sourceName, variant string) string {
	stem := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return sanitizeFilename(stem) + "_" + variant + ".pdf"
}

// sanitizeFilename keeps letters, digits, dots, dashes, and underscores;
// everything else (path separators included) becomes an underscore.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// writeSSESnapshot writes a job snapshot as a single SSE data event.
func writeSSESnapshot(w http.ResponseWriter, j model.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
