package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"user_service/internal/metrics"
	"user_service/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	serverError     = "Server error"
	forbiddenAccess = "Forbidden-Access"

	messageBlocked   = "Users blocked successfully"
	messageUnblocked = "Users unblocked successfully"
	messageDeleted   = "Users deleted successfully"
)

type Handler struct {
	serviceLayer service.Service
	tokens       TokenVerifier
	metrics      *metrics.Metrics
	log          *slog.Logger
}

type RouterOptions struct {
	AllowedOrigins []string
	// GuardedRoutes lists route patterns, e.g. "/users" or
	// "/user-status/:email", that require a bearer token.
	GuardedRoutes []string
}

type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type bulkResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result"`
}

type userIDsRequest struct {
	UserIDs []string `json:"userIds"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, tokens TokenVerifier, m *metrics.Metrics, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		tokens:       tokens,
		metrics:      m,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	if h.metrics != nil {
		router.Use(h.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	guarded := make(map[string]bool, len(opts.GuardedRoutes))
	for _, path := range opts.GuardedRoutes {
		guarded[path] = true
	}

	handle := func(method, path string, handler gin.HandlerFunc) {
		if guarded[path] {
			router.Handle(method, path, AuthMiddleware(h.tokens), handler)
			return
		}
		router.Handle(method, path, handler)
	}

	handle(http.MethodGet, "/", h.Root)
	handle(http.MethodPost, "/jwt", h.IssueToken)

	handle(http.MethodGet, "/users", h.GetAllUsers)
	handle(http.MethodPost, "/users", h.CreateUser)
	handle(http.MethodGet, "/all-users", h.GetAllUsers)

	handle(http.MethodPost, "/blockUsers", h.BlockUsers)
	handle(http.MethodPost, "/unblockUsers", h.UnblockUsers)
	handle(http.MethodPost, "/delete", h.DeleteUsers)

	handle(http.MethodGet, "/userLogin", h.Login)
	handle(http.MethodGet, "/user-status/:email", h.UserStatus)

	return router
}

// GET /
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "server!")
}

// POST /jwt
func (h *Handler) IssueToken(c *gin.Context) {
	const op = "handler.IssueToken"

	log := h.log.With(slog.String("op", op))

	var claims map[string]any
	if err := c.ShouldBindJSON(&claims); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "wrong request format")

		return
	}

	// a literal null decodes without error
	if claims == nil {
		log.Error("given no claims")

		newErrorResponse(c, http.StatusBadRequest, "wrong request format")

		return
	}

	token, err := h.serviceLayer.IssueToken(claims)
	if err != nil {
		log.Error("failed to sign token", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// GET /users, GET /all-users
func (h *Handler) GetAllUsers(c *gin.Context) {
	const op = "handler.GetAllUsers"

	log := h.log.With(slog.String("op", op))

	users, err := h.serviceLayer.ListUsers(c.Request.Context())
	if err != nil {
		log.Error("failed to get all users", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	c.JSON(http.StatusOK, users)
}

// POST /users
func (h *Handler) CreateUser(c *gin.Context) {
	const op = "handler.CreateUser"

	log := h.log.With(slog.String("op", op))

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "wrong request format")

		return
	}

	res, err := h.serviceLayer.CreateUser(c.Request.Context(), body)
	if errors.Is(err, service.ErrPasswordRequired) {
		log.Error("given empty password")

		newErrorResponse(c, http.StatusBadRequest, "password is required")

		return
	}
	if err != nil {
		log.Error("failed to create user", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	log.Info("user created", slog.String("user_id", res.InsertedID))

	c.JSON(http.StatusOK, res)
}

// POST /blockUsers
func (h *Handler) BlockUsers(c *gin.Context) {
	const op = "handler.BlockUsers"

	log := h.log.With(slog.String("op", op))

	ids, ok := h.bindUserIDs(c, log)
	if !ok {
		return
	}

	res, err := h.serviceLayer.BlockUsers(c.Request.Context(), ids)
	if err != nil {
		log.Error("failed to block users", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	log.Info("users blocked", slog.Int("requested", len(ids)), slog.Int64("modified", res.ModifiedCount))

	c.JSON(http.StatusOK, bulkResponse{Message: messageBlocked, Result: res})
}

// POST /unblockUsers
func (h *Handler) UnblockUsers(c *gin.Context) {
	const op = "handler.UnblockUsers"

	log := h.log.With(slog.String("op", op))

	ids, ok := h.bindUserIDs(c, log)
	if !ok {
		return
	}

	res, err := h.serviceLayer.UnblockUsers(c.Request.Context(), ids)
	if err != nil {
		log.Error("failed to unblock users", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	log.Info("users unblocked", slog.Int("requested", len(ids)), slog.Int64("modified", res.ModifiedCount))

	c.JSON(http.StatusOK, bulkResponse{Message: messageUnblocked, Result: res})
}

// POST /delete
func (h *Handler) DeleteUsers(c *gin.Context) {
	const op = "handler.DeleteUsers"

	log := h.log.With(slog.String("op", op))

	ids, ok := h.bindUserIDs(c, log)
	if !ok {
		return
	}

	res, err := h.serviceLayer.DeleteUsers(c.Request.Context(), ids)
	if err != nil {
		log.Error("failed to delete users", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	log.Info("users deleted", slog.Int("requested", len(ids)), slog.Int64("deleted", res.DeletedCount))

	c.JSON(http.StatusOK, bulkResponse{Message: messageDeleted, Result: res})
}

// bindUserIDs reads {"userIds": [...]}. A malformed body or a missing list
// is reported the same way as a store failure.
func (h *Handler) bindUserIDs(c *gin.Context, log *slog.Logger) ([]string, bool) {
	var req userIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read user ids", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return nil, false
	}

	if req.UserIDs == nil {
		log.Error("given no user ids")

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return nil, false
	}

	return req.UserIDs, true
}

// GET /userLogin?email=&password=
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	email := c.Query("email")

	message, err := h.serviceLayer.Login(c.Request.Context(), email, c.Query("password"))
	if err != nil {
		log.Error("failed to check login", slog.String("email", email), slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	log.Debug("login checked", slog.String("email", email), slog.String("result", message))

	c.JSON(http.StatusOK, messageResponse{Message: message})
}

// GET /user-status/:email
func (h *Handler) UserStatus(c *gin.Context) {
	const op = "handler.UserStatus"

	log := h.log.With(slog.String("op", op))

	email := c.Param("email")

	message, err := h.serviceLayer.UserStatus(c.Request.Context(), email)
	if err != nil {
		log.Error("failed to get user status", slog.String("email", email), slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, serverError)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: message})
}
