package domain

import "errors"

var (
	// ErrNotFound is returned by stores when the requested row does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists covers both the pre-check hit and the unique-constraint race on email.
	ErrAlreadyExists = errors.New("email already registered")
	// ErrInvalidField is a not-null violation surfaced while persisting a new account.
	ErrInvalidField = errors.New("missing required field")
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("authentication token missing")
	ErrInvalidToken       = errors.New("invalid authentication token")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrProfileNotFound    = errors.New("profile not found")
	// ErrPersistenceFailure is any local database failure that is not a caller error.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrIdentityProviderUnavailable is a connection-level or 5xx failure talking to the IdP.
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")
	// ErrIdentityProviderRejected is an application-level refusal from the IdP (4xx).
	ErrIdentityProviderRejected = errors.New("identity provider rejected request")
	// ErrIdentityNotFound is returned by deletes of an identity that is already gone.
	// Callers treat it as a successful delete.
	ErrIdentityNotFound = errors.New("identity not found")

	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")

	ErrStorageUnavailable    = errors.New("storage provider unavailable")
	ErrStorageUploadFailed   = errors.New("storage upload failed")
	ErrStorageAccessDenied   = errors.New("storage access denied")
	ErrStorageMisconfigured  = errors.New("storage misconfigured")
	ErrStorageInvalidRequest = errors.New("invalid storage request")
	ErrBucketNotFound        = errors.New("storage bucket not found")
)
