package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/branched-services/go-evmprobe"
)

// Error codes returned in the JSON error envelope.
const (
	codeBadRequest  = "BAD_REQUEST"
	codeNoMatch     = "NO_MATCHING_FUNCTION"
	codeNodeError   = "NODE_ERROR"
	codeNodeUnavail = "NODE_UNAVAILABLE"
	codeTimeout     = "TIMEOUT"
	codeInternal    = "INTERNAL_ERROR"
	codeRateLimited = "RATE_LIMIT_EXCEEDED"
)

// errorStatus maps an operation error to an HTTP status and code.
// NoMatchingFunctionError is checked first since it wraps candidate errors.
func errorStatus(err error) (int, string) {
	var (
		noMatch   *evmprobe.NoMatchingFunctionError
		encErr    *evmprobe.EncodingError
		precErr   *evmprobe.PrecisionError
		rpcErr    *evmprobe.RPCError
		subErr    *evmprobe.SubmissionError
		decErr    *evmprobe.DecodingError
		transport *evmprobe.TransportError
	)
	switch {
	case errors.As(err, &noMatch):
		return http.StatusUnprocessableEntity, codeNoMatch
	case errors.As(err, &encErr), errors.As(err, &precErr), errors.Is(err, evmprobe.ErrNegativeAmount):
		return http.StatusBadRequest, codeBadRequest
	case errors.As(err, &rpcErr), errors.As(err, &subErr), errors.As(err, &decErr):
		return http.StatusBadGateway, codeNodeError
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable, codeNodeUnavail
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	}
	return http.StatusInternalServerError, codeInternal
}

func (s *Server) writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("operation failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, code, err.Error())
}
