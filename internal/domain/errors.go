package domain

import "errors"

var (
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrCameraUnavailable     = errors.New("camera unavailable")
	ErrCaptureFailed         = errors.New("capture failed")
	ErrInvalidImage          = errors.New("invalid image")
	ErrNoAPIKey              = errors.New("missing api key")
)
