package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"finmark/internal/service"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes the request body into v, answering 400 on malformed JSON
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body.",
			Errors:  []service.FieldError{{Field: "body", Message: err.Error()}},
		})
		return false
	}
	return true
}

func positiveQueryInt(c *gin.Context, name string, def, max int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, service.FieldInvalid(name, fmt.Sprintf("%s must be a positive integer", name), raw)
	}
	if max > 0 && n > max {
		return 0, service.FieldInvalid(name, fmt.Sprintf("%s must be between 1 and %d", name, max), raw)
	}
	return n, nil
}

// maxPage keeps (page-1)*limit far from overflowing
const maxPage = math.MaxInt32

// pageParams reads page and limit from the query string
func (h *Handler) pageParams(c *gin.Context) (page, limit int, err error) {
	page, err = positiveQueryInt(c, "page", 1, maxPage)
	if err != nil {
		return 0, 0, err
	}
	limit, err = positiveQueryInt(c, "limit", h.pagination.Default, h.pagination.Max)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// dateParam reads an RFC 3339 timestamp or a plain date. A plain end date
// covers the whole day.
func dateParam(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, service.FieldInvalid(name, fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name), raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func boolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, service.FieldInvalid(name, fmt.Sprintf("%s must be true or false", name), raw)
	}
	return v, nil
}
