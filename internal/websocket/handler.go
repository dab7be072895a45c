package websocket

import (
	"log/slog"
	"net/http"

	"github.com/e2dconnect/e2d/internal/auth"

	ws "github.com/coder/websocket"
)

// Handler upgrades authenticated requests and attaches them to the hub.
// originPatterns extends the same-origin check (see ws.AcceptOptions).
func Handler(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "user_id", ac.UserID, "error", err)
			return
		}

		logger.Debug("websocket connected", "user_id", ac.UserID)
		NewClient(hub, conn, ac).Run(r.Context())
		logger.Debug("websocket disconnected", "user_id", ac.UserID)
	}
}
