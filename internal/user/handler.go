package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/core/common/validation"
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/transport"
	"github.com/frahmantamala/leaf/pkg/logger"
	"github.com/go-chi/chi"
)

const ImageSizeHeader = "image_size"

type ServiceAPI interface {
	Login(ctx context.Context, username, password string) (*User, string, error)
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Confirm(ctx context.Context, key string) (*User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, key, newPassword string) (*User, error)
	UpdateImage(ctx context.Context, u *User, data []byte) (*User, error)
	GrantPermissions(ctx context.Context, email string, names []string) (*User, error)
	RevokePermissions(ctx context.Context, email string, names []string) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	serializer    *Serializer
	sizes         *media.Sizes
	maxUploadSize int64
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, images *media.Images, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = 5 << 20
	}
	return &Handler{
		BaseHandler:   baseHandler,
		Service:       service,
		serializer:    NewSerializer(images),
		sizes:         images.Sizes(),
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	if lg, ok := logger.FromContext(r.Context()); ok {
		return lg
	}
	return h.Logger
}

// imageHeight validates the image_size header before any work is done.
func (h *Handler) imageHeight(w http.ResponseWriter, r *http.Request) (int, bool) {
	height, err := h.sizes.Resolve(r.Header.Get(ImageSizeHeader))
	if err != nil {
		h.WriteAppError(w, r, err)
		return 0, false
	}
	return height, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := h.DecodeJSON(r, dst); err != nil {
		h.WriteAppError(w, r, err)
		return false
	}
	if err := validation.Struct(dst); err != nil {
		h.WriteAppError(w, r, err)
		return false
	}
	return true
}

// Token handles POST /users/token
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, token, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info("User successful generated token", "user", u.Email)
	h.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        h.serializer.Serialize(u, height),
	})
}

// Register handles POST /users/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info("New user registered", "user", u.Email)
	h.WriteJSON(w, http.StatusCreated, h.serializer.Serialize(u, height))
}

// Confirm handles POST /users/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.Service.Confirm(r.Context(), req.Key)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info("User confirmed", "user", u.Email)
	h.WriteJSON(w, http.StatusOK, h.serializer.Serialize(u, height))
}

// PasswordReset handles POST /users/password-reset
func (h *Handler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.Service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DetailResponse{Detail: PasswordResetSentDetail})
}

// PasswordResetConfirm handles POST /users/password-reset-confirm
func (h *Handler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	var req PasswordResetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.Service.ConfirmPasswordReset(r.Context(), req.Key, req.NewPassword)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info("Password changed", "user", u.Email)
	h.WriteJSON(w, http.StatusOK, h.serializer.Serialize(u, height))
}

// UpdateImage handles PUT /users/user-image
func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrCouldNotValidate)
		return
	}
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		h.WriteAppError(w, r, internal.ErrInvalidBody.WithCause(err))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.WriteAppError(w, r, internal.NewValidationFieldErrors([]internal.ValidationError{
			{Field: "image", Message: "image is required", Code: "required"},
		}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.WriteAppError(w, r, internal.ErrInvalidBody.WithCause(err))
		return
	}

	u, err := h.Service.UpdateImage(r.Context(), current, data)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info("Profile image updated", "user", u.Email)
	h.WriteJSON(w, http.StatusOK, h.serializer.Serialize(u, height))
}

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrCouldNotValidate)
		return
	}
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, h.serializer.Serialize(current, height))
}

// GrantPermissions handles POST /users/{email}/permissions/grant
func (h *Handler) GrantPermissions(w http.ResponseWriter, r *http.Request) {
	h.changePermissions(w, r, h.Service.GrantPermissions, "Permissions granted")
}

// RevokePermissions handles POST /users/{email}/permissions/revoke
func (h *Handler) RevokePermissions(w http.ResponseWriter, r *http.Request) {
	h.changePermissions(w, r, h.Service.RevokePermissions, "Permissions revoked")
}

func (h *Handler) changePermissions(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, []string) (*User, error), msg string) {
	height, ok := h.imageHeight(w, r)
	if !ok {
		return
	}
	var req PermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}

	email := chi.URLParam(r, "email")
	u, err := apply(r.Context(), email, req.Permissions)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.log(r).Info(msg, "target", u.Email, "permissions", req.Permissions)
	h.WriteJSON(w, http.StatusOK, h.serializer.Serialize(u, height))
}
