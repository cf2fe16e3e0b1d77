package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/bedrock-status/internal/game"
	"github.com/woozymasta/bedrock-status/internal/vars"
)

// handleStatus returns the latest poll snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Snapshot())
}

// handleHealth answers 200 once the first poll completed and 503 before that.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()

	code := http.StatusOK
	if snap.Polls == 0 {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"polls":  snap.Polls,
		"online": snap.Online,
		"result": snap.Result,
	})
}

// handleVersion returns the build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleServerQuery performs a live status query to a specific Bedrock server.
// It acts as a proxy to retrieve real-time server status.
// Query params: ?host=play.example.com&port=19132
func (s *Server) handleServerQuery(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	portStr := r.URL.Query().Get("port")

	if host == "" {
		http.Error(w, "Missing host", http.StatusBadRequest)
		return
	}

	port := game.DefaultPort
	if portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			http.Error(w, "Invalid port", http.StatusBadRequest)
			return
		}
	}

	client, err := game.New(host, port, s.query)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error(), "kind": game.Kind(err)})
		return
	}
	defer func() { _ = client.Close() }()

	status, err := client.Query(r.Context(), s.queryTimeout)
	if err != nil {
		log.Debug().Err(err).
			Str("host", host).
			Int("port", port).
			Msg("Live query failed")

		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error(), "kind": game.Kind(err)})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
