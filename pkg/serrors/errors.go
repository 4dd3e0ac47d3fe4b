package serrors

import (
	"errors"
	"fmt"
)

// BaseError is a coded error that can be localized by the presentation layer.
type BaseError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	LocaleKey string `json:"locale_key,omitempty"`
}

func (b *BaseError) Error() string {
	return b.Message
}

// Is matches any BaseError carrying the same code.
func (b *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == b.Code
}

func NewError(code string, message string, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

// Wrap attaches cause to a copy of err so the code survives errors.Is and the
// cause survives errors.As.
func Wrap(err *BaseError, cause error) error {
	if cause == nil {
		return err
	}
	return &wrapped{base: err, cause: cause}
}

type wrapped struct {
	base  *BaseError
	cause error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %v", w.base.Message, w.cause)
}

func (w *wrapped) Unwrap() []error {
	return []error{w.base, w.cause}
}

// Code returns the code of the first BaseError in err's chain.
func Code(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}
