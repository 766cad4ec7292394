package errno

import (
	"errors"
	"fmt"
)

// BizError 业务错误，携带错误码与底层原因
type BizError struct {
	errno *Errno
	cause error
}

// NewBizError wraps cause with a business code.
func NewBizError(e *Errno, cause error) *BizError {
	if e == nil {
		e = ErrInternalServer
	}
	return &BizError{errno: e, cause: cause}
}

func (b *BizError) Error() string {
	if b.cause == nil {
		return b.errno.Message
	}
	return fmt.Sprintf("%s: %v", b.errno.Message, b.cause)
}

// Errno returns the business code.
func (b *BizError) Errno() *Errno { return b.errno }

// Unwrap exposes both the code and the cause to errors.Is / errors.As.
func (b *BizError) Unwrap() []error {
	if b.cause == nil {
		return []error{b.errno}
	}
	return []error{b.errno, b.cause}
}

// Decode extracts the business code from any error chain, ErrInternalServer otherwise.
func Decode(err error) *Errno {
	if err == nil {
		return OK
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.errno
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer
}
