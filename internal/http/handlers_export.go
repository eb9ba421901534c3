package http

import (
	"errors"
	"fmt"
	"net/http"

	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/xlsx"
)

const exportFilename = "agreements.xlsx"

// handleExport streams the filtered grid as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := ParseTableQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.agreements.Table(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := xlsx.Encode(p)
	if err != nil {
		writeError(w, r, fmt.Errorf("export workbook: %w", err))
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Agreements exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldViewMode, p.View,
		applog.FieldCount, len(p.Rows))

	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename)).
		Raw(data, xlsx.ContentType).
		Write(w)
}

// handleImport creates one agreement per row of an uploaded workbook. The
// upload travels in the multipart field "file".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		BadRequestError("Failed to parse upload").Write(w)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		BadRequestError("File not found in request").Write(w)
		return
	}
	defer file.Close()

	rows, err := xlsx.Import(file)
	if errors.Is(err, core.ErrInvalidInput) {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err != nil {
		BadRequestError("Invalid workbook").Write(w)
		return
	}

	res, err := s.agreements.Import(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(res).Write(w)
}
