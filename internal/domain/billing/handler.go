package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/query"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/bills", h.CreateBill)
	api.GET("/bills", h.ListBills)
	api.GET("/bills/:id", h.GetBill)
	api.DELETE("/bills/:id", h.DeleteBill)
	api.GET("/bills/:id/cleared", h.GetBillCleared)
	api.POST("/bills/:id/reserve", h.ReserveBill)
	api.POST("/bills/:id/unreserve", h.UnreserveBill)
	api.POST("/bills/:id/pay", h.PayBill)

	api.POST("/payer-schemes", h.CreatePayerScheme)
	api.GET("/payer-schemes", h.ListPayerSchemes)
	api.GET("/payer-schemes/:id", h.GetPayerScheme)
	api.PUT("/payer-schemes/:id", h.UpdatePayerScheme)
	api.DELETE("/payer-schemes/:id", h.DeletePayerScheme)

	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices", h.ListInvoices)
	api.GET("/invoices/:id", h.GetInvoice)
	api.POST("/invoices/:id/confirm", h.ConfirmInvoice)
	api.POST("/invoices/:id/payments", h.RecordInvoicePayment)
	api.POST("/invoices/:id/cancel", h.CancelInvoice)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	if IsValidation(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// actor extracts the acting-user snapshot from the request body, if provided.
type actorRequest struct {
	Actor *UserSnapshot `json:"actor,omitempty"`
}

// -- Bill Handlers --

type createBillRequest struct {
	Bill
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) CreateBill(c echo.Context) error {
	var req createBillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	b := req.Bill
	if err := h.svc.CreateBill(c.Request().Context(), &b, req.PatientID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := query.ExtractParams(c)
	items, total, err := h.svc.ListBills(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteBill(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBill(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetBillCleared(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cleared, err := h.svc.IsCleared(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_cleared": cleared})
}

func (h *Handler) ReserveBill(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req actorRequest
	_ = c.Bind(&req)
	b, err := h.svc.ReserveBill(c.Request().Context(), id, req.Actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) UnreserveBill(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req actorRequest
	_ = c.Bind(&req)
	b, err := h.svc.UnreserveBill(c.Request().Context(), id, req.Actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) PayBill(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req actorRequest
	_ = c.Bind(&req)
	b, err := h.svc.PayBill(c.Request().Context(), id, req.Actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

// -- Payer Scheme Handlers --

func (h *Handler) CreatePayerScheme(c echo.Context) error {
	var ps PayerScheme
	if err := c.Bind(&ps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePayerScheme(c.Request().Context(), &ps); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ps)
}

func (h *Handler) GetPayerScheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ps, err := h.svc.GetPayerScheme(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) UpdatePayerScheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var ps PayerScheme
	if err := c.Bind(&ps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ps.ID = id
	if err := h.svc.UpdatePayerScheme(c.Request().Context(), &ps); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) DeletePayerScheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePayerScheme(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPayerSchemes(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayerSchemes(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Invoice Handlers --

type createInvoiceRequest struct {
	BillIDs       []uuid.UUID   `json:"bill_ids"`
	EncounterType EncounterType `json:"encounter_type"`
	CreatedBy     *UserSnapshot `json:"created_by,omitempty"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), req.BillIDs, req.EncounterType, req.CreatedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := query.ExtractParams(c)
	items, total, err := h.svc.ListInvoices(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type confirmInvoiceRequest struct {
	ConfirmedBy *UserSnapshot `json:"confirmed_by,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
}

func (h *Handler) ConfirmInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req confirmInvoiceRequest
	_ = c.Bind(&req)
	inv, err := h.svc.ConfirmInvoice(c.Request().Context(), id, req.ConfirmedBy, req.DueDate)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RecordInvoicePayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var line PaymentLine
	if err := c.Bind(&line); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.RecordInvoicePayment(c.Request().Context(), id, line)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req actorRequest
	_ = c.Bind(&req)
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id, req.Actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}
