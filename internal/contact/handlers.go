package contact

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/numify/internal/extract"
)

// maxUploadSize caps photo uploads; phone cameras rarely go past 12MB
const maxUploadSize = int64(20 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"error": message}
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleScan runs OCR and extraction over an uploaded photo
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Photo is too large. Maximum size is 20MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No photo was provided. Please take or choose a photo.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading photo. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeForPath(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	var result *ScanResult
	if r.FormValue("mode") == "single" {
		result, err = s.service.ScanSingle(data, contentType)
	} else {
		result, err = s.service.Scan(data, contentType)
	}
	if err != nil {
		slog.Error("Error scanning photo", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadGateway, "Scan failed: "+err.Error())
		return
	}

	if q := strings.TrimSpace(r.FormValue("q")); q != "" {
		result.Candidates = extract.Filter(result.Candidates, q)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleActions returns the dial and chat URIs for a phone number
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	actions, err := NewActions(r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// handleListContacts returns all saved contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.service.ListContacts()
	if err != nil {
		slog.Error("Error listing contacts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if contacts == nil {
		contacts = []*Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// handleSaveContact saves a reviewed candidate
func (s *Server) handleSaveContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	contact, err := s.service.SaveContact(req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, ErrInvalidPhone) {
			writeError(w, http.StatusBadRequest, "Save failed: "+err.Error())
			return
		}
		slog.Error("Error saving contact", "error", err)
		writeError(w, http.StatusInternalServerError, "Save failed: could not write contact")
		return
	}

	writeJSON(w, http.StatusCreated, contact)
}

// handleGetContact returns a single contact
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.service.GetContact(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Contact not found")
			return
		}
		slog.Error("Error getting contact", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleDeleteContact deletes a contact
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteContact(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Contact not found")
			return
		}
		slog.Error("Error deleting contact", "error", err)
		writeError(w, http.StatusInternalServerError, "Delete failed")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleExportContacts streams the contact list as a workbook
func (s *Server) handleExportContacts(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportXLSX()
	if err != nil {
		slog.Error("Error exporting contacts", "error", err)
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts.xlsx"`)
	w.Write(data)
}
