package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cdr.dev/slog/v3"

	"github.com/lazypower/vaultactivity/internal/engine"
	"github.com/lazypower/vaultactivity/internal/report"
	"github.com/lazypower/vaultactivity/internal/vault"
)

type pathRequest struct {
	Path string `json:"path"`
}

func decodePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return "", false
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return "", false
	}
	return req.Path, true
}

func (s *Server) handleEvent(kind engine.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := decodePath(w, r)
		if !ok {
			return
		}
		counted, err := s.engine.Track(kind, p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"counted": counted})
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Dashboard())
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("order") {
	case "", "most":
		writeJSON(w, http.StatusOK, s.engine.MostViewed())
	case "least":
		writeJSON(w, http.StatusOK, s.engine.LeastViewed())
	default:
		writeError(w, http.StatusBadRequest, "order must be most or least")
	}
}

func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePath(w, r)
	if !ok {
		return
	}
	if err := s.engine.OpenDocument(r.Context(), p); err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathRequest{Path: p})
}

func (s *Server) handleOpenNeglected(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.OpenRandomNeglected(r.Context())
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathRequest{Path: rec.Path})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearAll(r.Context()); err != nil {
		// The store is already empty; only the write failed.
		s.logger.Warn(r.Context(), "clear: save failed", slog.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReportPreview(w http.ResponseWriter, r *http.Request) {
	records := s.engine.Tracker.Filtered()
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(report.Markdown(records, s.clock.Now())))
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GenerateReport(r.Context())
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pathRequest{Path: p})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vault-activity.csv"`)
	_, _ = w.Write([]byte(s.engine.ExportCSV()))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Tracker.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.engine.Tracker.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if settings.ExcludedFolders == nil {
		settings.ExcludedFolders = []string{}
	}
	s.engine.Tracker.UpdateSettings(settings)
	s.engine.Refresh()
	writeJSON(w, http.StatusOK, s.engine.Tracker.Settings())
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.engine.Notices.Recent(limit))
}

// writeCommandError maps engine errors to statuses. The engine has already
// shown the user a notice for each of them.
func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(r.Context(), "command failed", slog.F("path", r.URL.Path), slog.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
