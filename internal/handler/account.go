package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// AccountHandler serves wallet, KYC and moderation endpoints.
type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(s *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: s}
}

type topUpReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type kycSubmitReq struct {
	Document string `json:"document"`
}

type kycReviewReq struct {
	Approve bool `json:"approve"`
}

type blockReq struct {
	Blocked bool `json:"blocked"`
}

func (h *AccountHandler) Wallet(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	bal, err := h.Accounts.Balance(c.Request().Context(), a.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

func (h *AccountHandler) TopUp(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req topUpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid amount")
	}
	bal, err := h.Accounts.TopUp(c.Request().Context(), a, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// SubmitKYC moves the calling organizer to pending verification.
func (h *AccountHandler) SubmitKYC(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req kycSubmitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Accounts.SubmitKYC(c.Request().Context(), a, strings.TrimSpace(req.Document))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) ReviewKYC(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req kycReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Accounts.ReviewKYC(c.Request().Context(), a, id, req.Approve)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) SetBlocked(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req blockReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.Accounts.SetBlocked(c.Request().Context(), a, id, req.Blocked); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "blocked": req.Blocked})
}
