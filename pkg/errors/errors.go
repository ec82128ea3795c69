package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeReconciliationRequired Code = "RECONCILIATION_REQUIRED"
	CodeProxyDelivery          Code = "PROXY_DELIVERY_DETECTED"
	CodeStorageUnavailable     Code = "STORAGE_UNAVAILABLE"
	CodeNotInitialized         Code = "CRYPTO_NOT_INITIALIZED"
	CodeDecryptionFailed       Code = "DECRYPTION_FAILED"
	CodeDependency             Code = "DEPENDENCY_ERROR"
	CodeInternal               Code = "INTERNAL_ERROR"
)

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return typed.code == code
}
