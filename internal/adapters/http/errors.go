package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/viralforge/users-service/internal/domain"
)

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "EMAIL_ALREADY_REGISTERED", "email already registered"
	case errors.Is(err, domain.ErrInvalidField):
		return http.StatusBadRequest, "MISSING_REQUIRED_FIELD", err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusUnauthorized, "MISSING_TOKEN", "authentication token missing"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token"
	case errors.Is(err, domain.ErrAccountDisabled):
		return http.StatusForbidden, "ACCOUNT_DISABLED", "account disabled"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found"
	case errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, "PROFILE_NOT_FOUND", "profile not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file too large"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", "unsupported file type"
	case errors.Is(err, domain.ErrIdentityProviderUnavailable):
		return http.StatusServiceUnavailable, "IDENTITY_PROVIDER_UNAVAILABLE", "identity provider unavailable"
	case errors.Is(err, domain.ErrIdentityProviderRejected):
		return http.StatusBadGateway, "IDENTITY_PROVIDER_REJECTED", "identity provider rejected the request"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusInternalServerError, "DATABASE_ERROR", "database error"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage provider unavailable"
	case errors.Is(err, domain.ErrBucketNotFound):
		return http.StatusInternalServerError, "BUCKET_NOT_FOUND", "storage bucket not found"
	case errors.Is(err, domain.ErrStorageAccessDenied):
		return http.StatusForbidden, "STORAGE_ACCESS_DENIED", "storage access denied"
	case errors.Is(err, domain.ErrStorageMisconfigured):
		return http.StatusInternalServerError, "STORAGE_MISCONFIGURED", "storage misconfigured"
	case errors.Is(err, domain.ErrStorageInvalidRequest):
		return http.StatusInternalServerError, "STORAGE_INVALID_REQUEST", "invalid storage request"
	case errors.Is(err, domain.ErrStorageUploadFailed):
		return http.StatusBadGateway, "STORAGE_UPLOAD_FAILED", "storage upload failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}
