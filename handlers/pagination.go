package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset for raw listings. Limit is clamped to
// [1, MaxLimit]; a negative offset is an error.
func ParsePagination(c *gin.Context) (PaginationParams, error) {
	limit, err := queryInt(c, "limit", DefaultLimit)
	if err != nil {
		return PaginationParams{}, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return PaginationParams{}, err
	}
	if offset < 0 {
		return PaginationParams{}, fmt.Errorf("invalid offset parameter, must be non-negative")
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter, must be an integer", key)
	}
	return n, nil
}

func requiredInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s parameter", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter, must be an integer", key)
	}
	return n, nil
}

func requiredString(c *gin.Context, key string) (string, error) {
	v := c.Query(key)
	if v == "" {
		return "", fmt.Errorf("missing %s parameter", key)
	}
	return v, nil
}
