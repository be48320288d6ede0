package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/authgate/internal/auth"
	"github.com/wuwenbin0122/authgate/internal/metrics"
	"github.com/wuwenbin0122/authgate/internal/models"
)

const (
	operationRegister = "register"
	operationLogin    = "login"
)

type Handler struct {
	authService *auth.Service
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewHandler(authService *auth.Service, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{authService: authService, metrics: m, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.handleRegister)
	authGroup.POST("/login", h.handleLogin)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AuthService    *auth.Service
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter assembles the engine: recovery, request logging, CORS, the auth
// routes, health and metrics probes, and the JSON 404 fallback.
func NewRouter(opts RouterOptions) (*gin.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	corsMiddleware, err := NewCORS(opts.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(recoverPanic(logger), RequestLogger(logger), corsMiddleware)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	NewHandler(opts.AuthService, opts.Metrics, logger).RegisterRoutes(router)
	router.NoRoute(handleNotFound)

	return router, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

type loginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, operationRegister, auth.ErrValidation)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(c, operationRegister, err)
		return
	}

	h.metrics.ObserveAuth(operationRegister, "success")
	c.JSON(http.StatusCreated, registerResponse{
		Message: "User registered successfully.",
		User:    *user,
	})
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, operationLogin, auth.ErrValidation)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(c, operationLogin, err)
		return
	}

	h.metrics.ObserveAuth(operationLogin, "success")
	c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful.",
		Token:   result.Token,
		User:    result.User,
	})
}
