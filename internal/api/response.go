package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListData wraps a list with its length.
type ListData struct {
	Rows  any `json:"rows"`
	Total int `json:"total"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func listResponse(c echo.Context, rows any, total int) error {
	return successResponse(c, &ListData{Rows: rows, Total: total})
}

func badRequestResponse(c echo.Context, data any) error {
	return dataResponse(c, http.StatusBadRequest, data)
}

func badGatewayResponse(c echo.Context, msg string) error {
	return dataResponse(c, http.StatusBadGateway, msg)
}

func internalServerErrorResponse(c echo.Context) error {
	return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
