// Package handler exposes the auth service over HTTP with gin.
package handler

import (
	"net/http"

	"github.com/AtoyanMikhail/taskmanager/internal/auth"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/models"
	"github.com/AtoyanMikhail/taskmanager/internal/token"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc    *auth.Service
	signer *token.Signer
	logger logger.Logger
}

func New(svc *auth.Service, signer *token.Signer, l logger.Logger) *Handler {
	return &Handler{
		svc:    svc,
		signer: signer,
		logger: logger.Component(l, "http"),
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Endpoint not found", &models.ErrorDetails{Code: CodeNotFound})
	})

	r.GET("/healthz", h.Health)

	api := r.Group("/api/v1/auth")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/refresh", h.Refresh)
	api.POST("/logout", h.Logout)
	api.GET("/me", RequireAccessToken(h.signer, h.logger), h.Me)

	return r, nil
}

func (h *Handler) Health(c *gin.Context) {
	success(c, http.StatusOK, "Service is healthy", nil)
}

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	account, err := h.svc.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	success(c, http.StatusCreated, "Account registered successfully", models.NewAccountResponse(account))
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	success(c, http.StatusOK, "Login successful", loginResponse(pair))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	success(c, http.StatusOK, "Token refreshed successfully", loginResponse(pair))
}

func (h *Handler) Logout(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, h.logger, err)
		return
	}

	success(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(c *gin.Context) {
	id, err := accountIDFrom(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	account, err := h.svc.Account(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	success(c, http.StatusOK, "Success", models.NewAccountResponse(account))
}

func loginResponse(p auth.TokenPair) models.LoginResponse {
	return models.LoginResponse{
		AccessToken:  p.AccessToken,
		TokenType:    p.TokenType,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt,
	}
}
