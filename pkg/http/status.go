package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
)

// StatusText returns the canonical reason phrase for a status code.
func StatusText(statusCode int) string {
	return fasthttp.StatusMessage(statusCode)
}
