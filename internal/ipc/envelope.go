package ipc

import (
	"errors"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// Envelope is the standardized invoke-channel response shape: either
// {success:true, data} or {success:false, error:{code,message,details?}}.
type Envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError is the error arm of an Envelope.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func success(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func failure(err error) Envelope {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		return Envelope{Success: false, Error: &EnvelopeError{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: errDetails(appErr.Cause),
		}}
	}
	return Envelope{Success: false, Error: &EnvelopeError{Code: string(core.CodeInternal), Message: err.Error()}}
}

func errDetails(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
