package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stupid-simple/foldershare/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail ends the request with the status matching err. Internal details are
// logged, never sent.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		message = apperr.ErrInternal.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
}

var errAdminDisabled = errors.New("admin routes are disabled")

func (s *Server) requireAdmin(c *gin.Context) {
	if s.adminToken == "" {
		s.logger.Warn().Str("path", c.FullPath()).Msg("admin request without configured token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errAdminDisabled.Error()})
		return
	}
	provided := c.GetHeader(HeaderAdminToken)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: apperr.ErrUnauthorized.Error()})
		return
	}
	c.Next()
}
