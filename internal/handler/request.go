package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// queryTenantID parses the optional tenant_id query parameter. Only platform
// admins ever act on it; for other roles tenant resolution ignores it.
func queryTenantID(c echo.Context) *uint {
	raw := c.QueryParam("tenant_id")
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	id := uint(parsed)
	return &id
}
