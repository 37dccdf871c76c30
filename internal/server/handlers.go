package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/alnah/propulse"
)

type healthResponse struct {
	Status   string `json:"status"`
	Exemplar string `json:"exemplar"`
}

// handleHealth reports liveness and whether the style exemplar loaded.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	exemplar := "loaded"
	if s.gen.Exemplar().Degraded() {
		exemplar = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Exemplar: exemplar})
}

// handleGenerate runs the pipeline for one proposal.
// POST /proposals/generate?mode=binary|inline
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	mode, err := propulse.ParseOutputMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
		return
	}

	var req generateRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:  "validation failed",
			Code:   CodeValidationFailed,
			Fields: fieldErrors(err),
		})
		return
	}

	prop := req.toProposal(s.now())

	switch mode {
	case propulse.ModeInline:
		s.serveInline(w, r, prop)
	default:
		s.serveBinary(w, r, prop)
	}
}

func (s *Server) serveInline(w http.ResponseWriter, r *http.Request, prop propulse.Proposal) {
	result, err := s.gen.GenerateInline(r.Context(), prop)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) serveBinary(w http.ResponseWriter, r *http.Request, prop propulse.Proposal) {
	doc, err := s.gen.GenerateFile(r.Context(), prop)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}
	defer func() { _ = doc.Close() }()

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	// Filename is sanitized: no quotes, separators or control characters
	h.Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)

	n, err := doc.WriteTo(w)
	if err == nil {
		return
	}
	if n == 0 {
		h.Del("Content-Disposition")
		s.writeGenerationError(w, err)
		return
	}
	// Headers already sent; the client sees a truncated body
	s.logger.Warn("response truncated",
		zap.String("proposal_id", prop.ID.String()),
		zap.Int64("bytes_sent", n),
		zap.Error(err))
}

// writeGenerationError maps pipeline errors to a generic 500. Details stay
// in the logs written by the pipeline.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, propulse.ErrEmptyCompanyName), errors.Is(err, propulse.ErrEmptyTitle):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), CodeValidationFailed)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), CodeGenerationFailed)
	}
}
