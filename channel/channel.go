// Package channel implements the method channel used between the bridge and its consumer: either
// side calls a named method and the other side acknowledges it with a success value, an
// application error, or a not-implemented answer.
package channel

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned for calls on, or still waiting on, a closed channel.
var ErrClosed = errors.New("channel closed")

type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "notImplemented"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func parseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusSuccess, StatusError, StatusNotImplemented} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown result status %q", s)
}

// Result is the acknowledgement of a method call.
type Result struct {
	Status  Status
	Value   interface{}
	Code    string
	Message string
	Details interface{}
}

func Success(v interface{}) Result {
	return Result{Status: StatusSuccess, Value: v}
}

func Error(code, message string, details interface{}) Result {
	return Result{Status: StatusError, Code: code, Message: message, Details: details}
}

func NotImplemented() Result {
	return Result{Status: StatusNotImplemented}
}

func (r Result) String() string {
	switch r.Status {
	case StatusError:
		return fmt.Sprintf("error %v: %v", r.Code, r.Message)
	case StatusSuccess:
		return fmt.Sprintf("success: %v", r.Value)
	default:
		return r.Status.String()
	}
}

type MethodCall struct {
	Method string
	Args   interface{}
}

// Invoker calls methods on the other side of the channel and waits for their acknowledgement.
type Invoker interface {
	InvokeMethod(ctx context.Context, method string, args interface{}) (Result, error)
}

// Handler answers method calls made by the other side.
type Handler interface {
	HandleMethodCall(ctx context.Context, call MethodCall) Result
}

type HandlerFunc func(ctx context.Context, call MethodCall) Result

func (f HandlerFunc) HandleMethodCall(ctx context.Context, call MethodCall) Result {
	return f(ctx, call)
}
