package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account"
	acctentity "github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
)

// Accounts is what the session endpoints need from the account service.
type Accounts interface {
	Authenticate(ctx context.Context, identifier, password string) (*acctentity.Account, error)
	FindByID(ctx context.Context, id string) (*acctentity.Account, error)
}

type Handler struct {
	svc      *Service
	accounts Accounts
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, accounts Accounts, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, accounts: accounts, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	ClientID   string `json:"client_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "Invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "Identifier and password are required")
		return
	}
	acct, err := h.accounts.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrBadCredentials) {
			h.logger.Infow("login rejected", "identifier", req.Identifier)
			response.WriteError(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid credentials")
			return
		}
		h.logger.Errorw("login failed", "err", err)
		response.WriteInternal(w)
		return
	}
	h.issue(w, r, acct, req.ClientID)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "refresh_token is required")
		return
	}
	rs, err := h.svc.Redeem(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpired) {
			response.WriteError(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired refresh token")
			return
		}
		h.logger.Errorw("redeem refresh token failed", "err", err)
		response.WriteInternal(w)
		return
	}
	acct, err := h.accounts.FindByID(r.Context(), rs.UserID)
	if err != nil {
		h.logger.Warnw("refresh for unknown account", "userId", rs.UserID, "err", err)
		response.WriteError(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired refresh token")
		return
	}
	h.issue(w, r, acct, rs.ClientID)
}

// Revoke always answers 200 for a well-formed request, whether or not the
// token was known.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "refresh_token is required")
		return
	}
	if err := h.svc.Revoke(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warnw("revoke refresh token failed", "err", err)
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Token revoked"})
}

func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.svc.JWKS())
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, acct *acctentity.Account, clientID string) {
	pair, err := h.svc.IssueTokens(r.Context(), acct, clientID)
	if err != nil {
		h.logger.Errorw("issue tokens failed", "userId", acct.ID, "err", err)
		response.WriteInternal(w)
		return
	}
	h.logger.Infow("session issued", "userId", acct.ID, "role", string(acct.Role))
	response.WriteJSON(w, http.StatusOK, pair)
}
