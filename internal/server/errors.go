package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

func badRequest(msg string) requestError {
	return requestError{Status: http.StatusBadRequest, Message: msg, Type: "invalid_request_error"}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorPayload(err error) errorBody {
	var payload errorBody
	payload.Error.Message = err.Error()
	payload.Error.Type = "upstream_error"
	return payload
}

func writeError(c echo.Context, status int, msg, errType string) error {
	var payload errorBody
	payload.Error.Message = msg
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error")
		return
	}
	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

// toHTTPError maps platform failures onto status codes.
func (s *Server) toHTTPError(err error) error {
	var status *transport.StatusError
	switch {
	case errors.Is(err, model.ErrUnsupportedModel):
		return requestError{Status: http.StatusNotFound, Message: err.Error(), Type: "not_found_error"}
	case errors.Is(err, model.ErrUnsupportedCapability):
		return requestError{Status: http.StatusUnprocessableEntity, Message: err.Error(), Type: "capability_error"}
	case errors.Is(err, platform.ErrConversion):
		s.logger.Warn("conversion failed", zap.Error(err))
		return requestError{Status: http.StatusBadGateway, Message: err.Error(), Type: "upstream_error"}
	case errors.As(err, &status):
		s.logger.Warn("upstream error", zap.Int("status", status.StatusCode), zap.String("request_id", status.RequestID))
		return requestError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("upstream provider returned %d", status.StatusCode),
			Type:    "upstream_error",
		}
	default:
		s.logger.Error("invoke failed", zap.Error(err))
		return requestError{Status: http.StatusBadGateway, Message: "upstream provider error", Type: "upstream_error"}
	}
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest(fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}
