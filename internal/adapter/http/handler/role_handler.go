package handler

import (
	"token-settlement-gateway/internal/adapter/http/dto"
	"token-settlement-gateway/internal/adapter/http/middleware"
	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/pkg/apperror"
	"token-settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// RoleHandler handles role registry endpoints.
type RoleHandler struct {
	roleSvc ports.RoleService
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roleSvc ports.RoleService) *RoleHandler {
	return &RoleHandler{roleSvc: roleSvc}
}

// GetRole handles GET /api/v1/roles/:address.
func (h *RoleHandler) GetRole(c *gin.Context) {
	address := c.Param("address")

	role, err := h.roleSvc.RoleOf(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RoleResponse{
		Address: domain.NormalizeAddress(address),
		Role:    string(role),
	})
}

// GrantRole handles PUT /api/v1/roles/:address. Owner-only.
func (h *RoleHandler) GrantRole(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	address := c.Param("address")
	if err := h.roleSvc.Grant(c.Request.Context(), caller, address, domain.Role(req.Role)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RoleResponse{
		Address: domain.NormalizeAddress(address),
		Role:    req.Role,
	})
}

// RevokeRole handles DELETE /api/v1/roles/:address. Owner-only.
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	address := c.Param("address")
	if err := h.roleSvc.Revoke(c.Request.Context(), caller, address); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RoleResponse{
		Address: domain.NormalizeAddress(address),
		Role:    string(domain.RoleNone),
	})
}
