package service

import (
	"context"

	"github.com/yndnr/mbaas-go/internal/core/domain"
)

// Result is the outcome of an asynchronous session operation.
type Result[T any] struct {
	Value T

	// Response is the backend response, if a request was made.
	Response *domain.Response

	Err error
}

// Callback receives the outcome of VerifyWithCallback or ClearWithCallback.
// Exactly one method is called, exactly once.
type Callback interface {
	// HandleSuccess is called with the validity of the session. After a
	// successful clear, valid is false.
	HandleSuccess(valid bool)

	// HandleError is called with the failed response. res.Err holds the error.
	HandleError(res *domain.Response)
}

// CallbackFuncs adapts a pair of functions to Callback. Nil fields are
// skipped.
type CallbackFuncs struct {
	OnSuccess func(valid bool)
	OnError   func(res *domain.Response)
}

// HandleSuccess implements Callback.
func (f CallbackFuncs) HandleSuccess(valid bool) {
	if f.OnSuccess != nil {
		f.OnSuccess(valid)
	}
}

// HandleError implements Callback.
func (f CallbackFuncs) HandleError(res *domain.Response) {
	if f.OnError != nil {
		f.OnError(res)
	}
}

// VerifyAsync runs Verify in the background. The returned channel receives
// exactly one Result and is then closed.
func (s *AuthSession) VerifyAsync(ctx context.Context, useAuth bool) <-chan Result[bool] {
	ch := make(chan Result[bool], 1)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer close(ch)

		valid, resp, err := s.verify(ctx, useAuth)
		ch <- Result[bool]{Value: valid, Response: resp, Err: err}
	}()

	return ch
}

// ClearAsync runs Clear in the background. The returned channel receives
// exactly one Result and is then closed.
func (s *AuthSession) ClearAsync(ctx context.Context, useAuth bool) <-chan Result[struct{}] {
	ch := make(chan Result[struct{}], 1)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer close(ch)

		resp, err := s.clear(ctx, useAuth)
		ch <- Result[struct{}]{Response: resp, Err: err}
	}()

	return ch
}

// VerifyWithCallback runs Verify in the background and reports the outcome
// to cb from a goroutine owned by the session. A nil cb discards the outcome.
func (s *AuthSession) VerifyWithCallback(ctx context.Context, cb Callback, useAuth bool) {
	cb = orNop(cb)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		valid, _, err := s.verify(ctx, useAuth)
		if err != nil {
			cb.HandleError(domain.NewErrorResponse(err))
			return
		}
		cb.HandleSuccess(valid)
	}()
}

// ClearWithCallback runs Clear in the background and reports the outcome to
// cb from a goroutine owned by the session. Success is reported as
// HandleSuccess(false). A nil cb discards the outcome.
func (s *AuthSession) ClearWithCallback(ctx context.Context, cb Callback, useAuth bool) {
	cb = orNop(cb)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		if _, err := s.clear(ctx, useAuth); err != nil {
			cb.HandleError(domain.NewErrorResponse(err))
			return
		}
		cb.HandleSuccess(false)
	}()
}

func orNop(cb Callback) Callback {
	if cb == nil {
		return CallbackFuncs{}
	}
	return cb
}
