package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxBodySize is the request body ceiling, large enough for high-resolution phone photos
const maxBodySize = int64(50 << 20) // 50MB

// ocrRequest is the body of POST /api/ticket-mistral-ocr
type ocrRequest struct {
	Base64Image string `json:"base64_image"`
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a request failure and counts it
func writeError(w http.ResponseWriter, err error) {
	var reqErr *Error
	if !errors.As(err, &reqErr) {
		reqErr = &Error{Kind: KindInternalFailure, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
	requestsTotal.WithLabelValues(reqErr.Kind.String()).Inc()
	writeJSON(w, reqErr.Status, errorResponse{Error: reqErr.Message, Details: reqErr.Details})
}

// decodeOCRRequest reads the JSON body, enforcing the size ceiling
func decodeOCRRequest(w http.ResponseWriter, r *http.Request) (*ocrRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty body is a request without an image
			return &req, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &Error{Kind: KindInvalidBody, Status: http.StatusRequestEntityTooLarge, Message: msgTooLarge, Err: err}
		}
		return nil, &Error{Kind: KindInvalidBody, Status: http.StatusBadRequest, Message: msgInvalidBody, Err: err}
	}
	return &req, nil
}

// handleTicketOCR extracts the articles of a receipt image
func (s *Server) handleTicketOCR(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOCRRequest(w, r)
	if err != nil {
		slog.Warn("Invalid OCR request body", "error", err)
		writeError(w, err)
		return
	}

	result, err := s.service.ExtractArticles(r.Context(), req.Base64Image)
	if err != nil {
		writeError(w, err)
		return
	}

	requestsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}
