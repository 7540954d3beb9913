// Package errors provides unified error handling with a shared error Code.
// Codes travel over gRPC as google.rpc.ErrorInfo details so clients can
// recover them without generated types.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/match"
	"github.com/GriffinCanCode/glyphscan/internal/pack"
	"github.com/GriffinCanCode/glyphscan/internal/palette"
	"github.com/GriffinCanCode/glyphscan/internal/reconcile"
	"github.com/GriffinCanCode/glyphscan/internal/scan"
)

// Domain identifies glyphscan in ErrorInfo details.
const Domain = "glyphscan"

// Code classifies an error.
type Code int32

const (
	CodeUnspecified Code = iota
	Unknown
	Internal
	InvalidInput
	NotFound
	Unavailable
	Timeout
	Cancelled
	MergeConflict
	FrameDecodeFailed
	FrameCaptureFailed
	DictionaryInvalid
	RecorderFailed
	ConfigInvalid
	ConfigMissing
)

var codeNames = map[Code]string{
	CodeUnspecified:    "CODE_UNSPECIFIED",
	Unknown:            "UNKNOWN",
	Internal:           "INTERNAL",
	InvalidInput:       "INVALID_INPUT",
	NotFound:           "NOT_FOUND",
	Unavailable:        "UNAVAILABLE",
	Timeout:            "TIMEOUT",
	Cancelled:          "CANCELLED",
	MergeConflict:      "MERGE_CONFLICT",
	FrameDecodeFailed:  "FRAME_DECODE_FAILED",
	FrameCaptureFailed: "FRAME_CAPTURE_FAILED",
	DictionaryInvalid:  "DICTIONARY_INVALID",
	RecorderFailed:     "RECORDER_FAILED",
	ConfigInvalid:      "CONFIG_INVALID",
	ConfigMissing:      "CONFIG_MISSING",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE_%d", int32(c))
}

// ParseCode is the inverse of Code.String; unknown names map to Unknown.
func ParseCode(s string) Code {
	for c, name := range codeNames {
		if name == s {
			return c
		}
	}
	return Unknown
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnspecified:    codes.Unknown,
	Unknown:            codes.Unknown,
	Internal:           codes.Internal,
	InvalidInput:       codes.InvalidArgument,
	NotFound:           codes.NotFound,
	Unavailable:        codes.Unavailable,
	Timeout:            codes.DeadlineExceeded,
	Cancelled:          codes.Canceled,
	MergeConflict:      codes.Aborted,
	FrameDecodeFailed:  codes.InvalidArgument,
	FrameCaptureFailed: codes.Unavailable,
	DictionaryInvalid:  codes.FailedPrecondition,
	RecorderFailed:     codes.Internal,
	ConfigInvalid:      codes.InvalidArgument,
	ConfigMissing:      codes.FailedPrecondition,
}

var httpCodeMap = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Canceled:           499,
	codes.Aborted:            http.StatusConflict,
	codes.FailedPrecondition: http.StatusPreconditionFailed,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the status REST handlers answer with.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpCodeMap[e.GRPCCode()]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ToProto converts to an ErrorInfo detail message.
func (e *AppError) ToProto() *errdetails.ErrorInfo {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md["message"] = e.Message
	return &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: Domain, Metadata: md}
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	if withDetail, err := st.WithDetails(e.ToProto()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromCore classifies an error returned by the recognition engine. AppErrors
// pass through unchanged.
func FromCore(err error) *AppError {
	if err == nil {
		return nil
	}
	var app *AppError
	if stderrors.As(err, &app) {
		return app
	}
	var conflict *reconcile.ConflictError
	switch {
	case stderrors.As(err, &conflict):
		return Wrap(err, MergeConflict, "recognition passes disagree").
			WithMetadata("x", fmt.Sprint(conflict.X)).
			WithMetadata("y", fmt.Sprint(conflict.Y))
	case stderrors.Is(err, context.Canceled):
		return Wrap(err, Cancelled, "cancelled")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, Timeout, "deadline exceeded")
	case isAny(err, glyph.ErrHeight, glyph.ErrWidth, glyph.ErrShape, glyph.ErrNotNormalized,
		glyph.ErrColors, glyph.ErrDuplicateID, glyph.ErrSheet, glyph.ErrManifest, match.ErrNoDictionary):
		return Wrap(err, DictionaryInvalid, "invalid dictionary")
	case isAny(err, match.ErrUnknownPolicy, match.ErrOptions, scan.ErrOptions, scan.ErrNoPolicy):
		return Wrap(err, ConfigInvalid, "invalid recognizer settings")
	case isAny(err, frame.ErrDecode):
		return Wrap(err, FrameDecodeFailed, "undecodable image")
	case isAny(err, frame.ErrScreenRect, frame.ErrDimensions):
		return Wrap(err, FrameDecodeFailed, "frame does not fit the screen geometry")
	case isAny(err, frame.ErrOutOfBounds, frame.ErrSampleCount, frame.ErrLayout,
		pack.ErrGeometry, pack.ErrLength, pack.ErrSampleRange,
		palette.ErrIndexOutOfRange, palette.ErrTableSize, palette.ErrNotInvertible,
		scan.ErrFrameTooSmall, scan.ErrNoCapacity, match.ErrTileHeight,
		reconcile.ErrUnordered, reconcile.ErrInvalidInput):
		return Wrap(err, InvalidInput, "invalid input")
	default:
		return Wrap(err, Internal, "internal error")
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if stderrors.Is(err, t) {
			return true
		}
	}
	return false
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		md := make(map[string]string, len(info.GetMetadata()))
		msg := st.Message()
		for k, v := range info.GetMetadata() {
			if k == "message" {
				msg = v
				continue
			}
			md[k] = v
		}
		if len(md) == 0 {
			md = nil
		}
		return &AppError{Code: ParseCode(info.GetReason()), Message: msg, Metadata: md}
	}

	// Fallback: map gRPC code to our error code
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message()}
}

// grpcToErrorCode maps gRPC codes back to our error codes (best effort).
func grpcToErrorCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidInput
	case codes.NotFound:
		return NotFound
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return Internal
	case codes.Aborted:
		return MergeConflict
	case codes.FailedPrecondition:
		return ConfigMissing
	default:
		return Unknown
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, FrameCaptureFailed:
		return true
	default:
		return false
	}
}
