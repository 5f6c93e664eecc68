package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/viralforge/users-service/internal/application"
	"github.com/viralforge/users-service/internal/domain"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "current_account", domain.ErrMissingToken)
		return
	}
	view, err := h.service.CurrentAccount(r.Context(), principal)
	if err != nil {
		writeMappedError(r.Context(), w, "current_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "current_profile", domain.ErrMissingToken)
		return
	}
	view, err := h.service.CurrentProfile(r.Context(), principal)
	if err != nil {
		writeMappedError(r.Context(), w, "current_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "upload_photo", domain.ErrMissingToken)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxPhotoBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.opts.MaxPhotoBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMappedError(r.Context(), w, "upload_photo", fmt.Errorf("%w: request body over %d bytes", domain.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		writeValidationError(r.Context(), w, "upload_photo", fmt.Errorf("invalid multipart body: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(r.Context(), w, "upload_photo", errors.New("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	res, err := h.service.UploadPhoto(r.Context(), principal, application.PhotoUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "upload_photo", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
