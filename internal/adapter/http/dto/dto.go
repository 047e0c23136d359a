package dto

import (
	"time"

	"token-settlement-gateway/internal/core/domain"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for account login.
type LoginRequest struct {
	Address  string `json:"address" binding:"required,address"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	Address string `json:"address"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CashInRequest is the request body for minting against a confirmed deposit.
type CashInRequest struct {
	Target      string `json:"target" binding:"required,address"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=100,safe_ref"`
}

// CashOutRequest is the request body for a self-service cash-out. The
// caller's own balance is debited; the account password unlocks the call.
type CashOutRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	BankAccount string `json:"bank_account" binding:"required,max=100"`
	Password    string `json:"password" binding:"required"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=100,safe_ref"`
}

// CashOutForRequest is the request body for a privileged cash-out on behalf
// of another holder.
type CashOutForRequest struct {
	Target      string `json:"target" binding:"required,address"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	BankAccount string `json:"bank_account" binding:"required,max=100"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=100,safe_ref"`
}

// GrantRoleRequest is the request body for assigning a role.
type GrantRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=MERCHANT OWNER"`
}

// SettlementResponse is the receipt returned for a committed settlement.
type SettlementResponse struct {
	ID           string `json:"id"`
	Sequence     int64  `json:"sequence"`
	Type         string `json:"settlement_type"`
	Target       string `json:"target"`
	Amount       int64  `json:"amount"`
	BankAccount  string `json:"bank_account,omitempty"`
	AuthorizedBy string `json:"authorized_by"`
	ReferenceID  string `json:"reference_id"`
	CreatedAt    string `json:"created_at"`
}

// NewSettlementResponse maps a journal row to its API shape.
func NewSettlementResponse(s *domain.Settlement) SettlementResponse {
	return SettlementResponse{
		ID:           s.ID.String(),
		Sequence:     s.Sequence,
		Type:         string(s.Type),
		Target:       s.Target,
		Amount:       s.Amount,
		BankAccount:  s.BankAccount,
		AuthorizedBy: s.AuthorizedBy,
		ReferenceID:  s.ReferenceID,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// SupplyResponse is the response for the total supply query.
type SupplyResponse struct {
	TotalSupply int64 `json:"total_supply"`
}

// RoleResponse is the response for a role query.
type RoleResponse struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

// SettlementListResponse wraps a settlement history page.
type SettlementListResponse struct {
	Items []SettlementResponse `json:"items"`
}

// NewSettlementListResponse maps journal rows to their API shape.
func NewSettlementListResponse(rows []domain.Settlement) SettlementListResponse {
	items := make([]SettlementResponse, 0, len(rows))
	for i := range rows {
		items = append(items, NewSettlementResponse(&rows[i]))
	}
	return SettlementListResponse{Items: items}
}
