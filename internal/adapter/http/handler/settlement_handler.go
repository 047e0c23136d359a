package handler

import (
	"strconv"

	"token-settlement-gateway/internal/adapter/http/dto"
	"token-settlement-gateway/internal/adapter/http/middleware"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"
	"token-settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles cash-in and cash-out endpoints.
type SettlementHandler struct {
	engine  ports.SettlementEngine
	journal ports.SettlementJournal
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(engine ports.SettlementEngine, journal ports.SettlementJournal) *SettlementHandler {
	return &SettlementHandler{engine: engine, journal: journal}
}

// CashIn handles POST /api/v1/settlements/cash-in. Owner-only: mints Amount
// into the target's balance against a confirmed fiat deposit.
func (h *SettlementHandler) CashIn(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CashInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	settlement, err := h.engine.CashIn(c.Request.Context(), ports.CashInRequest{
		Caller:      caller,
		Target:      req.Target,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewSettlementResponse(settlement))
}

// CashOut handles POST /api/v1/settlements/cash-out. Self-service: the
// caller redeems their own balance, unlocked by their account password.
func (h *SettlementHandler) CashOut(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	settlement, err := h.engine.CashOut(c.Request.Context(), ports.CashOutRequest{
		Caller:      caller,
		Amount:      req.Amount,
		BankAccount: req.BankAccount,
		Password:    req.Password,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewSettlementResponse(settlement))
}

// CashOutFor handles POST /api/v1/settlements/cash-out-for. Privileged:
// a Merchant or Owner authorizes a cash-out on behalf of the target holder.
func (h *SettlementHandler) CashOutFor(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CashOutForRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	settlement, err := h.engine.CashOutFor(c.Request.Context(), ports.CashOutForRequest{
		Caller:      caller,
		Target:      req.Target,
		Amount:      req.Amount,
		BankAccount: req.BankAccount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewSettlementResponse(settlement))
}

// GetSettlement handles GET /api/v1/settlements/:sequence.
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	sequence, err := strconv.ParseInt(c.Param("sequence"), 10, 64)
	if err != nil || sequence <= 0 {
		response.Error(c, apperror.Validation("invalid settlement sequence"))
		return
	}

	settlement, err := h.journal.GetBySequence(c.Request.Context(), sequence)
	if err != nil {
		response.Error(c, err)
		return
	}
	if settlement == nil {
		response.Error(c, apperror.ErrNotFound("settlement"))
		return
	}

	response.OK(c, dto.NewSettlementResponse(settlement))
}
