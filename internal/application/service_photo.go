package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

const sniffLen = 512

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadPhoto stores a new profile photo and points the caller's profile at it.
// The content type is detected from the bytes, not taken from the client.
func (s *Service) UploadPhoto(ctx context.Context, principal domain.Principal, upload PhotoUpload) (PhotoUploadResult, error) {
	logger := appLogger("application.photo")
	policy := s.cfg.Photo

	if s.photos == nil {
		return PhotoUploadResult{}, fmt.Errorf("%w: no object store configured", domain.ErrStorageMisconfigured)
	}
	if upload.Body == nil || upload.Size <= 0 {
		return PhotoUploadResult{}, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if upload.Size > policy.MaxBytes {
		return PhotoUploadResult{}, fmt.Errorf("%w: size %d exceeds %d bytes", domain.ErrFileTooLarge, upload.Size, policy.MaxBytes)
	}

	account, err := s.currentAccount(ctx, principal)
	if err != nil {
		return PhotoUploadResult{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return PhotoUploadResult{}, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidInput, err)
	}
	head = head[:n]
	mime := detectMIME(head)
	if !slices.Contains(policy.AcceptedMIMETypes, mime) {
		return PhotoUploadResult{}, fmt.Errorf("%w: detected %s", domain.ErrUnsupportedFileType, mime)
	}

	key := fmt.Sprintf("profiles/%s/%s%s", account.AccountID, uuid.New(), photoExtensions[mime])
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Body), upload.Size)
	url, err := s.photos.Put(ctx, key, mime, body, upload.Size)
	if err != nil {
		logger.ErrorContext(ctx, "profile photo upload failed",
			"operation", "upload_photo",
			"outcome", "failure",
			"account_id", account.AccountID,
			"object_key", key,
			"error", err,
		)
		return PhotoUploadResult{}, err
	}

	if err := s.accounts.UpdatePhotoURL(ctx, account.AccountID, account.AccountType, url, s.nowFn()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return PhotoUploadResult{}, fmt.Errorf("%w: account %s", domain.ErrProfileNotFound, account.AccountID)
		}
		return PhotoUploadResult{}, fmt.Errorf("%w: update photo url: %v", domain.ErrPersistenceFailure, err)
	}
	s.invalidateAccount(ctx, account.AccountID)

	logger.InfoContext(ctx, "profile photo updated",
		"operation", "upload_photo",
		"outcome", "success",
		"account_id", account.AccountID,
		"object_key", key,
		"content_type", mime,
		"size_bytes", upload.Size,
	)
	return PhotoUploadResult{PhotoURL: url}, nil
}

func detectMIME(head []byte) string {
	mime := http.DetectContentType(head)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
