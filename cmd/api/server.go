package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"propmarket/db"
	"propmarket/identity"
	"propmarket/recovery"
)

const requestIDHeader = "X-Request-ID"

type recoveryService interface {
	Verify(ctx context.Context, req recovery.VerifyRequest) (recovery.VerifyResult, error)
	Reset(ctx context.Context, req recovery.ResetRequest) error
}

type directoryService interface {
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.Account, error)
	SignIn(ctx context.Context, req identity.SignInRequest) (identity.SignInResult, error)
	VerifyToken(token string) (string, error)
}

// Server exposes the recovery and sign-in endpoints over HTTP.
type Server struct {
	recovery  recoveryService
	directory directoryService
	health    db.Pinger
	logger    *slog.Logger
}

type verifyRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type resetRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	NewPassword string `json:"newPassword"`
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// Router builds the gin engine with request-id and access-log middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/recovery/verify", s.handleVerify)
		api.POST("/recovery/reset", s.handleReset)
		api.POST("/auth/register", s.handleRegister)
		api.POST("/auth/login", s.handleLogin)
		api.GET("/auth/me", s.requireAccount(), s.handleMe)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(recovery.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString("request_id")),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.Any("err", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVerify(c *gin.Context) {
	var body verifyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	res, err := s.recovery.Verify(c.Request.Context(), recovery.VerifyRequest{
		Email: body.Email,
		Name:  body.Name,
		Phone: body.Phone,
	})
	if err != nil {
		var verr *recovery.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message()})
			return
		}
		s.logger.Error("verify failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": res.Found})
}

func (s *Server) handleReset(c *gin.Context) {
	var body resetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	err := s.recovery.Reset(c.Request.Context(), recovery.ResetRequest{
		Email:       body.Email,
		Name:        body.Name,
		Phone:       body.Phone,
		NewPassword: body.NewPassword,
	})
	if err != nil {
		status, msg := resetErrorResponse(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("reset failed", slog.Any("err", err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// resetErrorResponse maps recovery errors onto a status and the caller-facing
// message. Only the detailed variants carry their own text.
func resetErrorResponse(err error) (int, string) {
	var verr *recovery.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message()
	case errors.Is(err, recovery.ErrMutationFailed):
		return http.StatusInternalServerError, "failed to update password"
	case errors.Is(err, recovery.ErrIncompleteProfile):
		return http.StatusNotFound, "account has incomplete profile data"
	case errors.Is(err, recovery.ErrDetailsMismatch):
		return http.StatusUnauthorized, "details do not match our records"
	case errors.Is(err, recovery.ErrNotAuthorized):
		return http.StatusUnauthorized, "unable to verify account details"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var body identity.RegisterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	account, err := s.directory.Register(c.Request.Context(), body)
	switch {
	case errors.Is(err, identity.ErrWeakPassword), errors.Is(err, identity.ErrEmailRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": publicMessage(err)})
		return
	case errors.Is(err, identity.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	case err != nil:
		s.logger.Error("register failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, toAccountResponse(*account))
}

func (s *Server) handleLogin(c *gin.Context) {
	var body identity.SignInRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	result, err := s.directory.SignIn(c.Request.Context(), body)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		s.logger.Error("sign in failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   result.Token,
		"account": toAccountResponse(result.Account),
	})
}

// requireAccount rejects requests without a valid bearer token and stores the
// account id under "account_id".
func (s *Server) requireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		accountID, err := s.directory.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("account_id", accountID)
		c.Next()
	}
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accountId": c.GetString("account_id")})
}

func toAccountResponse(a identity.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// publicMessage strips the package prefix from a sentinel error.
func publicMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "identity: ")
}
