package transport

import (
	"errors"
	"net/http"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/bizcode"
	"github.com/fastygo/svckit/pkg/dbconn"
)

const internalErrorMsg = "internal error"

// FromError converts err into a non-Success envelope. A nil err yields Success.
func FromError(err error) Envelope[None] {
	if err == nil {
		return NewSuccess("ok")
	}

	if re, ok := dbconn.IsResolution(err); ok {
		code := bizcode.ConnInitFailed
		if re.Kind == dbconn.NotConfigured {
			code = bizcode.ConnNotConfigured
		}
		return NewFail(bizcode.Message(code)).WithCode(code).WithDetail(causeText(re.Err, re))
	}

	var be *dbconn.BorrowError
	if errors.As(err, &be) {
		return NewFail("database unavailable").WithDetail(be.Error())
	}

	dErr, ok := domain.AsError(err)
	if !ok {
		return NewFail(internalErrorMsg).WithDetail(err.Error())
	}

	var env Envelope[None]
	switch dErr.Kind {
	case domain.KindInvalid:
		env = NewIllegalArgument(dErr.Message)
	case domain.KindNotFound:
		env = NewWarn(dErr.Message).WithDetail(causeText(dErr.Err, dErr))
	case domain.KindConflict:
		env = NewWarn(dErr.Message)
	case domain.KindDuplicateKey:
		env = NewWarn(dErr.Message).WithCode(bizcode.DBDuplicateKey)
	case domain.KindConstraintViolation:
		env = NewWarn(dErr.Message).
			WithCode(bizcode.DBDeleteViolatesConstraint).
			WithDetail(causeText(dErr.Err, dErr))
	case domain.KindUnauthorized:
		env = NewWarn(dErr.Message).WithCode(bizcode.AuthUnauthorized)
	case domain.KindForbidden:
		env = NewWarn(dErr.Message).WithCode(bizcode.AuthForbidden)
	default:
		env = NewFail(dErr.Message).WithDetail(causeText(dErr.Err, dErr))
	}
	if dErr.Code != "" {
		env = env.WithCode(dErr.Code)
	}
	return env
}

// HTTPStatus picks the HTTP status for err using the same taxonomy as
// FromError.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if _, ok := dbconn.IsResolution(err); ok {
		return http.StatusServiceUnavailable
	}
	var be *dbconn.BorrowError
	if errors.As(err, &be) {
		return http.StatusServiceUnavailable
	}
	dErr, ok := domain.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch dErr.Kind {
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindDuplicateKey, domain.KindConstraintViolation:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// StatusFor maps an envelope result to an HTTP status for handlers that only
// hold the envelope.
func StatusFor(result ResultCode) int {
	switch result {
	case Success:
		return http.StatusOK
	case IllegalArgument:
		return http.StatusBadRequest
	case Warn:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf picks the HTTP status for an envelope, preferring its business
// code and falling back to StatusFor.
func StatusOf[E any](env Envelope[E]) int {
	code := bizcode.Code(env.CodeText())
	switch code {
	case bizcode.AuthUnauthorized, bizcode.AuthSessionExpired:
		return http.StatusUnauthorized
	case bizcode.AuthForbidden:
		return http.StatusForbidden
	case bizcode.DBNotFound:
		return http.StatusNotFound
	case bizcode.DBDuplicateKey, bizcode.DBDeleteViolatesConstraint, bizcode.DBRecordNotUpdated:
		return http.StatusConflict
	case bizcode.ReqRateLimited:
		return http.StatusTooManyRequests
	}
	switch code.Namespace() {
	case bizcode.NamespaceConn:
		return http.StatusServiceUnavailable
	case bizcode.NamespaceReq:
		return http.StatusBadRequest
	}
	return StatusFor(env.Result)
}

func causeText(cause, outer error) string {
	if cause != nil {
		return cause.Error()
	}
	return outer.Error()
}
