// Package http exposes the planning service as a JSON API.
//
// This file holds the response builder and the mapping from domain errors to
// status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"presupuesto/internal/budget"
	"presupuesto/internal/core"
)

// ResponseBuilder is a fluent JSON response.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// errorKinds maps error kinds to a status and a stable tag, first match wins.
var errorKinds = []struct {
	target error
	status int
	kind   string
}{
	{errBrandNotPermitted, http.StatusForbidden, "forbidden"},
	{errMalformedBody, http.StatusBadRequest, "malformed_body"},
	{errMalformedParam, http.StatusBadRequest, "malformed_param"},
	{core.ErrTransportUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{core.ErrPartialSave, http.StatusMultiStatus, "partial_save"},
	{core.ErrDuplicateBudget, http.StatusConflict, "duplicate_budget"},
	{budget.ErrSessionActive, http.StatusConflict, "session_active"},
	{core.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{core.ErrNotFound, http.StatusNotFound, "not_found"},
	{budget.ErrNoSession, http.StatusNotFound, "no_session"},
	{core.ErrInvalidPeriod, http.StatusBadRequest, "invalid_period"},
	{core.ErrInvalidMonth, http.StatusBadRequest, "invalid_month"},
	{core.ErrInvalidYear, http.StatusBadRequest, "invalid_year"},
	{core.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{core.ErrInvalidCategory, http.StatusBadRequest, "invalid_category"},
	{core.ErrInvalidSubcategory, http.StatusBadRequest, "invalid_subcategory"},
	{core.ErrNotesTooLong, http.StatusBadRequest, "notes_too_long"},
	{core.ErrEmptyBrand, http.StatusBadRequest, "empty_brand"},
	{core.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{budget.ErrNoEdit, http.StatusBadRequest, "no_edit"},
	{budget.ErrWrongMode, http.StatusBadRequest, "wrong_mode"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// statusFor classifies err. Unknown errors are internal.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// DomainError renders err with its mapped status. Internal errors hide their
// message.
func DomainError(err error) *ResponseBuilder {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return NewResponse().Status(status).JSON(errorBody{Error: msg, Kind: kind})
}
