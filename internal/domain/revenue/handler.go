package revenue

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/query"
	"github.com/hms/hms/internal/platform/spreadsheet"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/revenue/summary", h.Summary)
	api.GET("/reports/revenue/detail", h.Detail)
}

// reportParams strips the generator-level invoiced flag from the filter set
// so it is applied once, at aggregation time.
func reportParams(c echo.Context) (map[string]string, bool) {
	params := query.ExtractParams(c)
	delete(params, "invoiced")
	invoiced := strings.EqualFold(c.QueryParam("invoiced"), "true")
	return params, invoiced
}

func wantsExport(c echo.Context) bool {
	return strings.EqualFold(c.QueryParam("export"), "xlsx")
}

func sendWorkbook(c echo.Context, name string, data []byte) error {
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, spreadsheet.ContentType, data)
}

func (h *Handler) Summary(c echo.Context) error {
	params, invoiced := reportParams(c)
	rows, err := h.svc.Summary(c.Request().Context(), params, invoiced)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !wantsExport(c) {
		return c.JSON(http.StatusOK, map[string]interface{}{"data": rows})
	}

	headers := []string{"Module", "Total Amount", "Count"}
	cells := make([][]interface{}, len(rows))
	for i, r := range rows {
		cells[i] = []interface{}{string(r.Module), r.TotalAmount.String(), r.Count}
	}
	data, err := spreadsheet.Write("Revenue Summary", headers, cells)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return sendWorkbook(c, "revenue-summary", data)
}

func (h *Handler) Detail(c echo.Context) error {
	params, invoiced := reportParams(c)
	rows, err := h.svc.Detail(c.Request().Context(), params, invoiced)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !wantsExport(c) {
		return c.JSON(http.StatusOK, map[string]interface{}{"data": rows})
	}

	headers := []string{"Module", "Billing Code", "Description", "Total Quantity", "Total Amount", "Count"}
	cells := make([][]interface{}, len(rows))
	for i, r := range rows {
		cells[i] = []interface{}{string(r.BillSource), r.BillItemCode, r.Description, r.TotalQuantity, r.TotalAmount.String(), r.Count}
	}
	data, err := spreadsheet.Write("Revenue Detail", headers, cells)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return sendWorkbook(c, "revenue-detail", data)
}
