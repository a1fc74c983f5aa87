package domain

import "errors"

var (
	ErrImageTypeNotSupported = errors.New("image type not supported")
	ErrImageTypeMismatch     = errors.New("image ext does not match content type")
	ErrImageTooLarge         = errors.New("image too large")
	// ErrImageFetch is returned when a remote image cannot be downloaded.
	ErrImageFetch = errors.New("image fetch failed")
	// ErrAvatarNotFound is returned when an avatar file does not exist.
	ErrAvatarNotFound = errors.New("avatar not found")
)
