package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// UserHeader carries the caller's platform user id, set by the trusted chat-platform proxy.
const UserHeader = "X-Casino-User"

// HTTPHandler serves read-only wallet and hand-history lookups.
type HTTPHandler struct {
	ledger Store
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(store Store) *HTTPHandler {
	return &HTTPHandler{ledger: store}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ledger/balance", h.handleBalance)
	mux.HandleFunc("/api/ledger/hands/", h.handleHand)
}

func (h *HTTPHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := resolveUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	guildID := strings.TrimSpace(r.URL.Query().Get("guild"))
	if guildID == "" {
		writeError(w, http.StatusBadRequest, "missing guild")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	chips, err := h.ledger.Balance(ctx, guildID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query balance failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"guild_id": guildID,
		"user_id":  userID,
		"chips":    chips,
	})
}

func (h *HTTPHandler) handleHand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := resolveUserID(r); !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	handID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/ledger/hands/"))
	if handID == "" || strings.Contains(handID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rec, err := h.ledger.HandRecord(ctx, handID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "hand not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query hand failed")
		return
	}
	writeJSON(w, http.StatusOK, handRecordJSON(rec))
}

func handRecordJSON(rec *HandRecord) map[string]any {
	pots := make([]map[string]any, 0, len(rec.Pots))
	for _, p := range rec.Pots {
		pots = append(pots, map[string]any{"amount": p.Amount, "winners": p.Winners, "label": p.Label})
	}
	seats := make([]map[string]any, 0, len(rec.Seats))
	for _, s := range rec.Seats {
		seats = append(seats, map[string]any{
			"user_id":   s.UserID,
			"chair":     s.Chair,
			"committed": s.Committed,
			"won":       s.Won,
			"hole":      s.Hole,
			"hand":      s.Hand,
		})
	}
	return map[string]any{
		"hand_id":     rec.HandID,
		"table_id":    rec.Table.String(),
		"hand_no":     rec.HandNo,
		"board":       rec.Board,
		"rake":        rec.Rake,
		"pots":        pots,
		"seats":       seats,
		"ended_at_ms": rec.EndedAt.UnixMilli(),
	}
}

func resolveUserID(r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	return userID, userID != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
