package handlers

import (
	"errors"
	"strconv"
)

var errInvalidPagination = errors.New("invalid pagination params")

const maxPageLimit = 100

// parsePaginationParams returns page 0 and limit 0 (everything) unless both
// params are present.
func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	if pageStr == "" || limitStr == "" {
		return 0, 0, nil
	}

	page, err := strconv.ParseInt(pageStr, 10, 64)
	if err != nil || page < 1 {
		return 0, 0, errInvalidPagination
	}
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit < 1 {
		return 0, 0, errInvalidPagination
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, nil
}
