// Package respond defines the result every protected operation returns
// and the JSON envelope it is rendered into.
package respond

import (
	"net/http"

	"github.com/iliyamo/pipeline-crm/internal/auth"
)

// Envelope is the body of every API response.  Status mirrors the HTTP
// status code.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Result is what a protected service operation hands to the transport.
// Session carries the verification so rotated tokens can be written back
// and failed rotations can clear them.
type Result struct {
	Status  int
	Message string
	Data    any
	Session auth.Verification
}

// Envelope renders r for the wire.
func (r Result) Envelope() Envelope {
	return Envelope{Status: r.Status, Message: r.Message, Data: r.Data}
}

// FromVerification propagates a failed verification unchanged.
func FromVerification(v auth.Verification) Result {
	return Result{Status: v.Status, Message: v.Message, Session: v}
}

func OK(v auth.Verification, msg string, data any) Result {
	return Result{Status: http.StatusOK, Message: msg, Data: data, Session: v}
}

func Created(v auth.Verification, msg string, data any) Result {
	return Result{Status: http.StatusCreated, Message: msg, Data: data, Session: v}
}

func BadRequest(v auth.Verification, msg string) Result {
	return Result{Status: http.StatusBadRequest, Message: msg, Session: v}
}

func Forbidden(v auth.Verification) Result {
	return Result{Status: http.StatusForbidden, Message: "Forbidden", Session: v}
}

func Internal(v auth.Verification, msg string) Result {
	return Result{Status: http.StatusInternalServerError, Message: msg, Session: v}
}
