package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/storage"
)

// errBadParam marks a malformed path or query parameter
var errBadParam = errors.New("bad parameter")

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// fail maps err onto a status: 400 for invalid input, 404 with notFound for
// missing rows and 500 with internal for anything else.
func (s *Server) fail(c *gin.Context, err error, notFound, internal string) {
	switch {
	case errors.Is(err, fleet.ErrInvalid), errors.Is(err, errBadParam):
		message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		message(c, http.StatusNotFound, notFound)
	default:
		s.logger.Error(internal, "route", c.FullPath(), "error", err)
		message(c, http.StatusInternalServerError, internal)
	}
}

// pathID parses the :id parameter
func pathID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadParam, raw)
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter, def when absent
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadParam, name, raw)
	}
	return v, nil
}

// bind decodes the JSON body. An empty body leaves v untouched; field rules
// are checked later by the fleet input types.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body: %v", errBadParam, err)
	}
	return nil
}
