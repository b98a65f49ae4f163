package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
)

// maxUploadBytes bounds an uploaded document.
const maxUploadBytes = 20 << 20

type queryInput struct {
	Query string `json:"query"`
}

type adviceInput struct {
	DoctorID    string   `json:"doctor_id"`
	AdviceText  string   `json:"advice_text"`
	Specialties []string `json:"specialties"`
}

type documentInput struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type reminderInput struct {
	Medication string `json:"medication"`
	Dose       string `json:"dose,omitempty"`
	Time       string `json:"time"`
	Frequency  string `json:"frequency,omitempty"`
}

func (in reminderInput) candidate() conflict.Candidate {
	return conflict.Candidate{Medication: in.Medication, Time: in.Time, Frequency: in.Frequency}
}

// handleQuery handles POST /v1/queries.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var in queryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.assistant.Ask(r.Context(), in.Query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddAdvice handles POST /v1/advice.
func (s *Server) handleAddAdvice(w http.ResponseWriter, r *http.Request) {
	var in adviceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := s.assistant.AddAdvice(r.Context(), in.DoctorID, in.AdviceText, in.Specialties)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleIngestDocument handles POST /v1/documents. The body is either a
// multipart upload with a "file" part or JSON carrying extracted text.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.handleUpload(w, r)
		return
	}

	var in documentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	e, err := s.assistant.IngestText(r.Context(), in.Source, in.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		name = "upload.txt"
	}

	dir, err := os.MkdirTemp("", "medbuddy-upload-")
	if err != nil {
		s.fail(w, r, fmt.Errorf("create upload directory: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := saveUpload(path, file); err != nil {
		s.fail(w, r, err)
		return
	}

	e, err := s.assistant.IngestDocument(r.Context(), path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func saveUpload(path string, src io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("save upload: %w", err)
	}
	return f.Close()
}

// handleCheckReminder handles POST /v1/reminders/check.
func (s *Server) handleCheckReminder(w http.ResponseWriter, r *http.Request) {
	var in reminderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	findings, err := s.assistant.CheckReminder(r.Context(), in.candidate())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if findings == nil {
		findings = []conflict.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

// handleAddReminder handles POST /v1/reminders.
func (s *Server) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	var in reminderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.assistant.AddReminder(r.Context(), in.candidate(), in.Dose)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
