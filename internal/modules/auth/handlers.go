package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"authapi/internal/modules/respond"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.ForgotPassword(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// decode reads a JSON body. An empty body decodes to the zero request so the
// validator reports the first missing field.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	h.logger.Debug("Malformed request body", zap.String("path", r.URL.Path), zap.Error(err))
	respond.Error(w, http.StatusBadRequest, "Request body must be valid JSON")
	return false
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var flowErr *Error
	if !errors.As(err, &flowErr) {
		h.logger.Error("Unclassified auth error", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	respond.Error(w, flowErr.Kind.Status(), flowErr.Message)
}
