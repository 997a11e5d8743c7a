package setting

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting/entity"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type listResponse struct {
	Success  bool              `json:"success"`
	Settings []*entity.Setting `json:"settings"`
}

type putResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Setting *entity.Setting `json:"setting"`
}

// List returns every stored setting.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Errorw("list settings failed", "err", err)
		response.WriteInternal(w)
		return
	}
	response.WriteJSON(w, http.StatusOK, listResponse{Success: true, Settings: settings})
}

// Put replaces the metadata of one setting category.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, "Invalid request body")
		return
	}
	st, err := h.svc.Put(r.Context(), category, body)
	if err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			response.WriteError(w, http.StatusNotFound, response.CodeInvalidInput, err.Error())
			return
		}
		if errors.Is(err, ErrInvalidSetting) {
			response.WriteError(w, http.StatusBadRequest, response.CodeInvalidInput, err.Error())
			return
		}
		h.logger.Errorw("put setting failed", "category", category, "err", err)
		response.WriteInternal(w)
		return
	}
	h.logger.Infow("setting updated", "category", category)
	response.WriteJSON(w, http.StatusOK, putResponse{Success: true, Message: "Setting updated", Setting: st})
}
