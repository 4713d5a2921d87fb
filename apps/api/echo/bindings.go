package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// paramID parses the named path parameter as an ID. Malformed IDs resolve to nothing.
func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

type IDResponse struct {
	ID int64 `json:"id"`
}
