package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kbhavake29/Task-flow-WebApp/internal/service"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/middleware"
)

// AdminHandler handles administrator-only endpoints.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// RevokeUserTokens handles POST /api/admin/users/{id}/revoke-tokens. Every
// live session of the target user is terminated.
func (h *AdminHandler) RevokeUserTokens(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(userID); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid user id"},
		})
		return
	}

	if err := h.service.RevokeAllSessions(r.Context(), userID, "admin_revocation"); err != nil {
		writeAppError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "all user sessions revoked",
		slog.String("target_user_id", userID),
		slog.String("admin_user_id", middleware.UserIDFromContext(r.Context())),
	)

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"id": userID, "status": "tokens_revoked"},
	})
}
