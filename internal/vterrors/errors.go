/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vterrors implements the compiler core's error taxonomy:
// every error the core raises is one of a closed set of typed errors,
// each carrying a canonical code and, for user-facing kinds, the AST
// context the error was raised against.
package vterrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies which member of the taxonomy an error belongs to.
// Modeled on the canonical RPC status codes vterrors.Errorf pins
// every wrapped error to upstream.
type Code int

const (
	// CodeQuery marks user-input errors: unknown module, incomplete
	// migration, CONFIGURE SYSTEM inside a transaction, a script with
	// parameters, bad migration state.
	CodeQuery Code = iota
	// CodeResultCardinalityMismatch marks an expected_cardinality_one
	// violation.
	CodeResultCardinalityMismatch
	// CodeTransaction marks a savepoint/transaction protocol violation.
	CodeTransaction
	// CodeAuthentication marks a rewrapped backend auth/catalog failure.
	CodeAuthentication
	// CodeInternal marks an invariant violation inside the compiler
	// itself — never the user's fault.
	CodeInternal
	// CodeProtocol marks a wrong statement count for the declared mode.
	CodeProtocol
	// CodeSchema marks an error surfaced from the schema engine.
	CodeSchema
	// CodeSchemaSyntax marks a schema/SDL syntax error surfaced from
	// the schema engine.
	CodeSchemaSyntax
)

func (c Code) String() string {
	switch c {
	case CodeQuery:
		return "QueryError"
	case CodeResultCardinalityMismatch:
		return "ResultCardinalityMismatchError"
	case CodeTransaction:
		return "TransactionError"
	case CodeAuthentication:
		return "AuthenticationError"
	case CodeInternal:
		return "InternalServerError"
	case CodeProtocol:
		return "ProtocolError"
	case CodeSchema:
		return "SchemaError"
	case CodeSchemaSyntax:
		return "SchemaSyntaxError"
	default:
		return "UnknownError"
	}
}

// Context is the AST source-context span a QueryError/SchemaError
// carries back to the client.
type Context struct {
	Line   int
	Column int
	// Text is the offending source fragment, when available.
	Text string
}

// Error is the concrete type returned for every member of the
// taxonomy. Err.Unwrap exposes the wrapped cause so callers can use
// errors.Is/errors.As against the underlying pkg/errors chain.
type Error struct {
	Code    Code
	Err     error
	Context *Context
	// Hint carries a canonical remediation hint, e.g. the
	// "cannot commit incomplete migration" guidance.
	Hint string
	// Syntax marks a QueryError raised by the parser rather than by
	// semantic analysis; the normalized-source retry path keys on it.
	Syntax bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: errors.Errorf(format, args...)}
}

// QueryErrorf builds a QueryError without AST context; prefer
// QueryErrorAt whenever a Context is available so the client can point
// at the offending statement.
func QueryErrorf(format string, args ...interface{}) *Error {
	return newf(CodeQuery, format, args...)
}

// QueryErrorAt builds a QueryError carrying the AST node's context.
func QueryErrorAt(ctx Context, format string, args ...interface{}) *Error {
	e := newf(CodeQuery, format, args...)
	e.Context = &ctx
	return e
}

// QuerySyntaxErrorf builds a QueryError flagged as a syntax failure.
func QuerySyntaxErrorf(format string, args ...interface{}) *Error {
	e := newf(CodeQuery, format, args...)
	e.Syntax = true
	return e
}

// IsSyntaxError reports whether err is a syntax-flagged QueryError.
func IsSyntaxError(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code == CodeQuery && ve.Syntax
	}
	return false
}

// QueryErrorHint attaches a remediation hint, e.g. for "cannot commit
// incomplete migration".
func QueryErrorHint(hint string, format string, args ...interface{}) *Error {
	e := newf(CodeQuery, format, args...)
	e.Hint = hint
	return e
}

// ResultCardinalityMismatchf builds a ResultCardinalityMismatchError.
func ResultCardinalityMismatchf(format string, args ...interface{}) *Error {
	return newf(CodeResultCardinalityMismatch, format, args...)
}

// TransactionErrorf builds a TransactionError.
func TransactionErrorf(format string, args ...interface{}) *Error {
	return newf(CodeTransaction, format, args...)
}

// AuthenticationErrorf builds an AuthenticationError wrapping a backend
// catalog/auth failure.
func AuthenticationErrorf(cause error, format string, args ...interface{}) *Error {
	e := newf(CodeAuthentication, format, args...)
	e.Err = errors.Wrap(cause, e.Err.Error())
	return e
}

// InternalErrorf builds an InternalServerError: an invariant violation
// in the compiler itself.
func InternalErrorf(format string, args ...interface{}) *Error {
	return newf(CodeInternal, format, args...)
}

// ProtocolErrorf builds a ProtocolError for a wrong statement count.
func ProtocolErrorf(format string, args ...interface{}) *Error {
	return newf(CodeProtocol, format, args...)
}

// SchemaErrorf wraps a schema-engine failure, adding AST context.
func SchemaErrorf(ctx Context, cause error, format string, args ...interface{}) *Error {
	e := newf(CodeSchema, format, args...)
	e.Context = &ctx
	if cause != nil {
		e.Err = errors.Wrap(cause, e.Err.Error())
	}
	return e
}

// SchemaSyntaxErrorf wraps an SDL/schema syntax failure.
func SchemaSyntaxErrorf(ctx Context, cause error, format string, args ...interface{}) *Error {
	e := newf(CodeSchemaSyntax, format, args...)
	e.Context = &ctx
	if cause != nil {
		e.Err = errors.Wrap(cause, e.Err.Error())
	}
	return e
}

// Is reports whether err is a *Error of the given code, unwrapping as
// needed.
func Is(err error, code Code) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}
