package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func respond(w http.ResponseWriter, status int, payload map[string]any) {
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

// respondError writes the uniform failure envelope. Internal detail never
// leaks past the message string.
func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// requireAPIKey rejects requests without a matching key in the X-API-Key
// header or api_key query parameter.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key == "" {
			zap.L().Warn("request without api key", zap.String("path", r.URL.Path))
			respondError(w, http.StatusUnauthorized, "API key is required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			zap.L().Warn("invalid api key", zap.String("path", r.URL.Path))
			respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
