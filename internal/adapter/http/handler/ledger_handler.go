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

// LedgerHandler handles read-only balance, supply, and history endpoints.
type LedgerHandler struct {
	querySvc ports.LedgerQueryService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(querySvc ports.LedgerQueryService) *LedgerHandler {
	return &LedgerHandler{querySvc: querySvc}
}

// GetBalance handles GET /api/v1/accounts/me/balance.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.querySvc.Balance(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Address: caller, Balance: balance})
}

// GetBalanceOf handles GET /api/v1/accounts/:address/balance. Balances are
// public reads; any authenticated caller may query any address.
func (h *LedgerHandler) GetBalanceOf(c *gin.Context) {
	address := c.Param("address")

	balance, err := h.querySvc.Balance(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Address: address, Balance: balance})
}

// GetTotalSupply handles GET /api/v1/supply.
func (h *LedgerHandler) GetTotalSupply(c *gin.Context) {
	supply, err := h.querySvc.TotalSupply(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SupplyResponse{TotalSupply: supply})
}

// ListSettlements handles GET /api/v1/accounts/me/settlements.
func (h *LedgerHandler) ListSettlements(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, apperror.Validation("invalid limit"))
			return
		}
		limit = parsed
	}

	rows, err := h.querySvc.Settlements(c.Request.Context(), caller, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewSettlementListResponse(rows))
}
