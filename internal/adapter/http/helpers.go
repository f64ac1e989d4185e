package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Strob0t/replatform-mcp/internal/logger"
)

// apiError is the body of every non-2xx JSON response. RequestID echoes
// X-Request-ID so a dashboard error can be matched to the server log.
type apiError struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON encodes v as the response body. Encoding failures can only be
// logged since the status line is already out.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "encode response failed", "path", r.URL.Path, "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, apiError{Error: message, RequestID: logger.RequestID(r.Context())})
}
