package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/receipt-cam/internal/capture"
	"github.com/zombor/receipt-cam/internal/corrections"
	"github.com/zombor/receipt-cam/internal/scanning"
)

// maxUploadSize bounds uploaded photos; phone pictures can be large
const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// cameraAvailable writes 503 when the server runs without a capture pipeline
func (s *Server) cameraAvailable(w http.ResponseWriter) bool {
	if s.camera == nil {
		jsonError(w, "Camera is not enabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handlePreview returns the latest rendered preview frame
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}

	view := s.camera.Preview()
	if view == nil {
		jsonError(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	data, err := scanning.EncodeJPEG(view.Image)
	if err != nil {
		slog.Error("Error encoding preview", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// handleCapture analyzes the freshest frame in the background
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}

	id, err := s.camera.Trigger()
	switch {
	case errors.Is(err, capture.ErrNoFrame):
		jsonError(w, "No frame available", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrClosed):
		jsonError(w, "Camera is shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		slog.Error("Error capturing frame", "error", err)
		jsonError(w, "Error capturing frame", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// handleAnalyzeUpload analyzes an uploaded photo or PDF like a captured frame
func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = scanning.ContentTypeFor(header.Filename)
	}

	jpegData, converted, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		slog.Error("Error converting upload", "filename", header.Filename, "content_type", contentType, "error", err)
		jsonError(w, "Unsupported image", http.StatusBadRequest)
		return
	}
	if converted {
		slog.Debug("Converted upload to JPEG", "filename", header.Filename, "from", contentType)
	}

	id, err := s.camera.Submit(jpegData)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// handleRotate advances the display and capture rotation
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"angle": s.camera.Rotate()})
}

// handleSession returns the current capture, pending count and status message
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.camera.Snapshot())
}

// handleSessionImage returns the image of the current capture
func (s *Server) handleSessionImage(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}

	current := s.camera.Current()
	if current == nil || len(current.JPEG) == 0 {
		corsError(w, "No capture", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(current.JPEG)
}

// handleCommitReceipt commits the current capture with the user's edits
func (s *Server) handleCommitReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.cameraAvailable(w) {
		return
	}

	var req struct {
		CaptureID string            `json:"capture_id"`
		Overrides map[string]string `json:"overrides"`
		Learn     bool              `json:"learn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	current := s.camera.Current()
	if current == nil || current.Receipt == nil || current.ID != req.CaptureID {
		jsonError(w, "Capture is no longer current", http.StatusConflict)
		return
	}

	result, err := s.service.Commit(CommitRequest{
		CaptureID:   current.ID,
		Receipt:     current.Receipt,
		Overrides:   req.Overrides,
		Image:       current.JPEG,
		ContentType: "image/jpeg",
		Filename:    "capture.jpg",
		Learn:       req.Learn,
	})
	if err != nil {
		slog.Error("Error committing receipt", "capture", current.ID, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.camera.Reset(current.ID)

	writeJSON(w, http.StatusCreated, result)
}

// handleListReceipts returns a list of all committed receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.List()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetReceipt returns a single committed receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*Record
		Final *scanning.Receipt `json:"final"`
	}{record, record.Final()})
}

// handleGetReceiptFile returns the stored image for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a committed receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSummary returns the ledger totals
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary()
	if err != nil {
		slog.Error("Error summarizing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListCorrections returns the working correction rules
func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"rules": s.corrections.Rules()})
}

// handleAddCorrection persists a rule given either as text or as its parts
func (s *Server) handleAddCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"rule"`
		corrections.Rule
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		if !scanning.IsField(req.Field) || req.Corrected == "" {
			jsonError(w, "A rule or a field with a corrected value is required", http.StatusBadRequest)
			return
		}
		text = req.Rule.Format()
	}

	if err := s.corrections.Add(text); err != nil {
		slog.Error("Error saving correction", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"rule": text})
}

// handleReloadCorrections re-reads the rule file
func (s *Server) handleReloadCorrections(w http.ResponseWriter, r *http.Request) {
	if err := s.corrections.Reload(); err != nil {
		slog.Error("Error reloading corrections", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"rules": s.corrections.Rules()})
}
