package account

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
)

// Handler exposes the admin account endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type passwordRequest struct {
	Password string `json:"password"`
}

// Create handles POST /users.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid create payload", "err", err)
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "Invalid request body")
		return
	}
	res := h.svc.Create(r.Context(), req)
	h.logger.Infow("admin create user", "adminUser", adminEmail(r), "email", req.Email, "username", req.Username, "success", res.Success, "error", string(res.Error))
	h.write(w, http.StatusCreated, res)
}

// List handles GET /users?page&limit. Unparseable values fall back to the
// defaults.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res := h.svc.List(r.Context(), page, limit)
	h.logger.Debugw("admin list users", "adminUser", adminEmail(r), "page", page, "limit", limit, "success", res.Success)
	h.write(w, http.StatusOK, res)
}

// UpdatePassword handles PUT /users/{userId}/password. An empty body asks for
// a generated password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debugw("invalid password payload", "err", err)
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "Invalid request body")
		return
	}
	res := h.svc.UpdatePassword(r.Context(), userID, req.Password)
	h.logger.Infow("admin update password", "adminUser", adminEmail(r), "userId", userID, "success", res.Success, "error", string(res.Error))
	h.write(w, http.StatusOK, res)
}

// Delete handles DELETE /users/{userId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	res := h.svc.Delete(r.Context(), userID)
	h.logger.Infow("admin delete user", "adminUser", adminEmail(r), "userId", userID, "success", res.Success, "error", string(res.Error))
	h.write(w, http.StatusOK, res)
}

func (h *Handler) write(w http.ResponseWriter, okStatus int, res *Result) {
	if res.Success {
		response.WriteJSON(w, okStatus, res)
		return
	}
	response.WriteJSON(w, StatusFor(res.Error), res)
}

// StatusFor maps a failure code to its HTTP status. Unknown codes are 400.
func StatusFor(code response.ErrorCode) int {
	switch code {
	case response.CodeUserExists:
		return http.StatusConflict
	case response.CodeUserNotFound:
		return http.StatusNotFound
	case response.CodeAdminDeleteForbidden:
		return http.StatusForbidden
	case response.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func adminEmail(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.Email
	}
	return ""
}
