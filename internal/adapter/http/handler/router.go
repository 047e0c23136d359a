package handler

import (
	"token-settlement-gateway/internal/adapter/http/middleware"
	redisStore "token-settlement-gateway/internal/adapter/storage/redis"
	"token-settlement-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	Engine         ports.SettlementEngine
	RoleSvc        ports.RoleService
	QuerySvc       ports.LedgerQueryService
	Journal        ports.SettlementJournal
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	settlementHandler := NewSettlementHandler(deps.Engine, deps.Journal)
	ledgerHandler := NewLedgerHandler(deps.QuerySvc)
	roleHandler := NewRoleHandler(deps.RoleSvc)

	settlements := v1.Group("/settlements", jwtAuth)
	{
		settlements.POST("/cash-in", rl("settlements"), settlementHandler.CashIn)
		settlements.POST("/cash-out", rl("settlements"), settlementHandler.CashOut)
		settlements.POST("/cash-out-for", rl("settlements"), settlementHandler.CashOutFor)
		settlements.GET("/:sequence", rl("queries"), settlementHandler.GetSettlement)
	}

	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("/me/balance", rl("queries"), ledgerHandler.GetBalance)
		accounts.GET("/me/settlements", rl("queries"), ledgerHandler.ListSettlements)
		accounts.GET("/:address/balance", rl("queries"), ledgerHandler.GetBalanceOf)
	}

	v1.GET("/supply", jwtAuth, rl("queries"), ledgerHandler.GetTotalSupply)

	roles := v1.Group("/roles", jwtAuth)
	{
		roles.GET("/:address", rl("queries"), roleHandler.GetRole)
		roles.PUT("/:address", rl("roles"), roleHandler.GrantRole)
		roles.DELETE("/:address", rl("roles"), roleHandler.RevokeRole)
	}

	return r
}
