package recorder

import (
	"errors"

	"github.com/balkashynov/whisp/internal/capture"
)

// Controller errors. Capture errors are re-exported so callers only need
// this package to classify what went wrong.
var (
	ErrPermissionDenied          = capture.ErrPermissionDenied
	ErrDeviceUnavailable         = capture.ErrDeviceUnavailable
	ErrDisplayCaptureUnavailable = capture.ErrDisplayCaptureUnavailable
	ErrSystemAudioDropped        = capture.ErrSystemAudioDropped
	ErrEncoderInitFailed         = capture.ErrEncoderInitFailed
	ErrContextClosed             = capture.ErrContextClosed

	ErrStorageWriteFailed  = errors.New("could not save recording progress")
	ErrUploadFailed        = errors.New("upload failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrQuotaExhausted      = errors.New("no recording minutes left")
	ErrInvalidTransition   = errors.New("invalid recorder transition")
	ErrSuperseded          = errors.New("recording was reset")
	ErrSaveInProgress      = errors.New("save already in progress")
)
