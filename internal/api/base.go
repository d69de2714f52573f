// Package api implements the HTTP/WebSocket gateway for human clients,
// per spec.md §4.H: a REST surface over the session registry plus a
// websocket fanout of live terminal output.
//
// Grounded on src/api/router.go (gin engine, CORS/no-cache/logrus
// middleware) and src/handler/base.go/terminal.go (response helpers,
// websocket upgrade + subscriber fanout loop).
package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/broker"
)

// BaseHandler provides response helpers shared by every route group.
type BaseHandler struct{}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (h *BaseHandler) SendError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, ErrorResponse{Error: message, Kind: kind})
}

func (h *BaseHandler) SendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func (h *BaseHandler) GetPathParam(c *gin.Context, param string) (string, error) {
	value := c.Param(param)
	if value == "" {
		return "", fmt.Errorf("missing required path parameter: %s", param)
	}
	return value, nil
}

func (h *BaseHandler) BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeBrokerError maps a *broker.Error to its HTTP status and kind;
// any other error is reported as an internal error.
func (h *BaseHandler) writeBrokerError(c *gin.Context, err error) {
	var be *broker.Error
	if errors.As(err, &be) {
		h.SendError(c, be.HTTPStatus(), string(be.Kind), be.Message)
		return
	}
	h.SendError(c, 500, string(broker.KindInternalError), err.Error())
}
