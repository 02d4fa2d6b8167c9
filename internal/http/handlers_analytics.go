package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	view, err := s.reports.Summary(r.Context(), currentUser(r).ID, q)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleAnalyticsCharts(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	charts, err := s.reports.Charts(r.Context(), currentUser(r).ID, q)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(charts).Write(w)
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	report, err := s.reports.Report(r.Context(), currentUser(r).ID, q)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleReportExport sends the range's transactions as a csv or json
// download. The format defaults to csv.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	file, err := s.reports.Export(r.Context(), currentUser(r).ID, q, format)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentAnalytics).InfoContext(r.Context(), "Report exported",
		log.FieldOperation, log.OpExport,
		"format", format,
		"filename", file.Filename,
		"bytes", len(file.Body))
	NewJSONResponse().Attachment(file.Filename, file.ContentType, file.Body).Write(w)
}
