package http

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}

// readyz runs every dependency probe and reports 503 if any fails.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.ReadyTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var failing []string
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			results[check.Name] = err.Error()
			failing = append(failing, check.Name)
			continue
		}
		results[check.Name] = "ok"
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Status: "error",
			Data:   map[string]any{"checks": results},
			Error:  &apiError{Code: "NOT_READY", Message: "dependencies unavailable: " + strings.Join(failing, ", ")},
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"state": "ready", "checks": results})
}
