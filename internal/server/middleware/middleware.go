// Package middleware carries the echo middleware chain: request ids,
// request logging, metrics, token auth, and the request validator.
package middleware

import "github.com/labstack/echo/v4"

// Skipper decides per request whether a middleware should be bypassed.
type Skipper func(c echo.Context) bool

func DefaultSkipper(echo.Context) bool {
	return false
}

// Logger is the sink LogRequest writes to.
type Logger interface {
	Infow(msg string, keyAndValues ...any)
	Warnw(msg string, keyAndValues ...any)
	Errorw(msg string, keyAndValues ...any)
}
