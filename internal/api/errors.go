package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

// respondError writes {"error": msg} with the status that matches err.
// Anything that is not a grc.Error is logged and reported as a generic server error.
func (s *Server) respondError(c *gin.Context, err error) {
	status, msg := s.classify(c, err)
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) abortError(c *gin.Context, err error) {
	status, msg := s.classify(c, err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) classify(c *gin.Context, err error) (int, string) {
	var ge *grc.Error
	if errors.As(err, &ge) {
		return grc.StatusCode(ge), ge.Message
	}
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return http.StatusBadRequest, "Duplicate value for a unique field"
	}
	s.log.Error().
		Err(err).
		Str("request_id", c.GetString(ctxRequestID)).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
	return http.StatusInternalServerError, "Server error"
}
