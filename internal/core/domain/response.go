package domain

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response is the outcome of a single exchange with the backend.
//
// A Response is produced for every request that reached the server, and for
// failed requests that never did (StatusCode is 0 and Err is set).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
	Err        error
}

// NewErrorResponse returns a Response describing a failed exchange.
// If err already carries a Response, that Response is returned.
func NewErrorResponse(err error) *Response {
	var re *ResponseError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response
	}
	return &Response{Err: err}
}

// OK reports whether the exchange succeeded with a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON returns the body as a JSON object.
func (r *Response) JSON() (map[string]any, error) {
	obj := make(map[string]any)
	if err := r.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return ErrMalformedResponse.WithDetails("empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return ErrMalformedResponse.WithCause(err)
	}
	return nil
}

// ErrorMessage returns a human-readable description of the failure, preferring
// the server-provided "message" or "msg" field.
func (r *Response) ErrorMessage() string {
	if r == nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if len(r.Body) > 0 && json.Unmarshal(r.Body, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Msg != "" {
			return body.Msg
		}
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.StatusCode != 0 {
		return http.StatusText(r.StatusCode)
	}
	return ""
}

// ResponseError ties an error to the Response that produced it.
type ResponseError struct {
	Response *Response
	Err      error
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ResponseError) Unwrap() error {
	return e.Err
}

// WrapResponse records err on resp and returns an error carrying both.
func WrapResponse(resp *Response, err error) error {
	if resp == nil {
		return err
	}
	resp.Err = err
	return &ResponseError{Response: resp, Err: err}
}
