// Package pagination parses the page/limit query parameters shared by the
// back-office list endpoints (clients, suppliers, rates, payments, audits).
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the validated page window for a list query. Repositories derive
// their own offsets from it.
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string, falling back to defaults
// and clamping limit so a single request cannot pull the whole table.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}
