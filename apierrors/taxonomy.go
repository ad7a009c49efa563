// Package apierrors defines the error taxonomy shared across the
// pipeline's phases, and the retry guidance each kind implies.
package apierrors

import "fmt"

// Kind identifies a category of pipeline failure.
type Kind string

const (
	CameraPermissionDenied Kind = "camera_permission_denied"
	NoCamera               Kind = "no_camera"
	VideoTimeout           Kind = "video_timeout"
	ModelLoadFailure       Kind = "model_load_failure"
	OcrBackendMissing      Kind = "ocr_backend_missing"
	MrzUnreadable          Kind = "mrz_unreadable"
	MrzUnparseable         Kind = "mrz_unparseable"
	NoFaceOnDocument       Kind = "no_face_on_document"
	DescriptorInvalid      Kind = "descriptor_invalid"
	LivenessFailed         Kind = "liveness_failed"
	StaticAttackSuspected  Kind = "static_attack_suspected"
	FaceMismatch           Kind = "face_mismatch"
	Transient              Kind = "transient"
)

// RetryAction is the recovery step a client should offer the user for
// a given Kind.
type RetryAction string

const (
	RetryRequestPermission RetryAction = "request_permission"
	RetryReconnectCamera   RetryAction = "reconnect_camera"
	RetryRecapture         RetryAction = "recapture"
	RetryRestartBackend    RetryAction = "restart_backend"
	RetryRetryPhase        RetryAction = "retry_phase"
	RetryGoBack            RetryAction = "go_back"
	RetryNone              RetryAction = "none"
)

var retryByKind = map[Kind]RetryAction{
	CameraPermissionDenied: RetryRequestPermission,
	NoCamera:                RetryReconnectCamera,
	VideoTimeout:            RetryRecapture,
	ModelLoadFailure:        RetryRestartBackend,
	OcrBackendMissing:       RetryRestartBackend,
	MrzUnreadable:           RetryRecapture,
	MrzUnparseable:          RetryRecapture,
	NoFaceOnDocument:        RetryRecapture,
	DescriptorInvalid:       RetryRecapture,
	LivenessFailed:          RetryRetryPhase,
	StaticAttackSuspected:   RetryGoBack,
	FaceMismatch:            RetryGoBack,
	Transient:               RetryRetryPhase,
}

// Retry returns the recovery action for a Kind, or RetryNone if the
// kind carries no specific guidance.
func Retry(k Kind) RetryAction {
	if a, ok := retryByKind[k]; ok {
		return a
	}
	return RetryNone
}

// Error is the pipeline's error type: a Kind for programmatic handling
// plus a human-readable message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error that carries err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// an *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Kind
}
