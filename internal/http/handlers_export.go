package http

import (
	"bytes"
	"net/http"

	"spendwise/internal/export"
	"spendwise/internal/log"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, cats, _ := s.data()
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, txs, cats); err != nil {
		writeError(w, r, err)
		return
	}
	s.logExport(r, "csv", len(txs))
	writeAttachment(w, "text/csv; charset=utf-8", export.FileName("csv", s.now()), buf.Bytes())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, cats, _ := s.data()
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, txs, cats, s.now()); err != nil {
		writeError(w, r, err)
		return
	}
	s.logExport(r, "pdf", len(txs))
	writeAttachment(w, "application/pdf", export.FileName("pdf", s.now()), buf.Bytes())
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	if s.sheets == nil {
		writeError(w, r, errSheetsDisabled)
		return
	}
	txs, cats, _ := s.data()
	ref, err := export.ToSheet(r.Context(), s.sheets, txs, cats, s.now())
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Sheets export failed", log.FieldError, err)
			writeJSON(w, http.StatusBadGateway, errorBody{Error: http.StatusText(http.StatusBadGateway), Message: "Could not write to Google Sheets."})
			return
		}
		writeError(w, r, err)
		return
	}
	s.logExport(r, "sheets", len(txs))
	writeJSON(w, http.StatusOK, map[string]string{"ref": ref})
}

func (s *Server) logExport(r *http.Request, format string, n int) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transactions exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldOperation, log.OpExport,
		log.FieldFormat, format,
		log.FieldCount, n,
		log.FieldIdentity, s.engine.Identity())
}
