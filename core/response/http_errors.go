package response

import "net/http"

// httpError carries an HTTP status code so the router's error handler can
// map it without string matching.
type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string   { return e.msg }
func (e *httpError) StatusCode() int { return e.code }

var (
	ErrBadRequest         = &httpError{code: http.StatusBadRequest, msg: "bad request"}
	ErrMethodNotAllowed   = &httpError{code: http.StatusMethodNotAllowed, msg: "method not allowed"}
	ErrInternalServer     = &httpError{code: http.StatusInternalServerError, msg: "internal server error"}
	ErrServiceUnavailable = &httpError{code: http.StatusServiceUnavailable, msg: "service unavailable"}
)
