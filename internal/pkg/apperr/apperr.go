package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定 HTTP 状态码
type Kind string

const (
	KindInternal       Kind = "internal"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindUpstream       Kind = "upstream"
	KindUnavailable    Kind = "unavailable"
)

// Error 带分类的业务错误
type Error struct {
	Kind Kind
	Op   string // 失败的操作，如 "facebook.list_campaigns"
	Msg  string // 可以返回给客户端的消息
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同一个哨兵错误被 Wrap 之后仍能匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg && t.Op == "" && t.Err == nil
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }
func Validation(msg string) *Error { return New(KindValidation, msg) }
func Conflict(msg string) *Error { return New(KindConflict, msg) }
func Unauthenticated(msg string) *Error { return New(KindAuthentication, msg) }
func Forbidden(msg string) *Error { return New(KindAuthorization, msg) }
func Unavailable(msg string) *Error { return New(KindUnavailable, msg) }

// Wrap 保留哨兵错误的分类和消息，附加操作名和底层错误
func Wrap(base *Error, op string, err error) *Error {
	return &Error{Kind: base.Kind, Op: op, Msg: base.Msg, Err: err}
}

// Upstream 外部 API（Facebook、Stripe）调用失败
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Msg: "上游服务调用失败", Err: err}
}

// KindOf 返回错误链中第一个 *Error 的分类，普通错误视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message 返回可以安全展示给客户端的消息
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
