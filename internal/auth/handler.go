package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	Repo   *Repo
	Tokens TokenService
	Log    zerolog.Logger
}

func NewHandler(repo *Repo, tokens TokenService, log zerolog.Logger) *Handler {
	return &Handler{Repo: repo, Tokens: tokens, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/admins/auth-with-password", h.authWithPassword)
	rg.POST("/admins/auth-refresh", RequireAdmin(h.Tokens, h.Repo), h.authRefresh)
}

type passwordReq struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

func (h *Handler) authWithPassword(c *gin.Context) {
	var req passwordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badAuth(c, gin.H{})
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" || req.Password == "" {
		data := gin.H{}
		if req.Identity == "" {
			data["identity"] = gin.H{"code": "validation_required", "message": "Missing required value."}
		}
		if req.Password == "" {
			data["password"] = gin.H{"code": "validation_required", "message": "Missing required value."}
		}
		badAuth(c, data)
		return
	}

	a, err := h.Repo.Authenticate(c.Request.Context(), req.Identity, req.Password)
	if err != nil {
		h.Log.Error().Err(err).Msg("[auth] lookup failed")
	}
	if a == nil {
		// same answer for unknown email and wrong password
		badAuth(c, gin.H{})
		return
	}

	h.respondToken(c, a)
}

func (h *Handler) authRefresh(c *gin.Context) {
	claims := MustGetClaims(c)
	a, err := h.Repo.GetByID(c.Request.Context(), claims.AdminID)
	if err != nil || a == nil {
		abort(c, "The request requires valid admin authorization token to be set.")
		return
	}
	h.respondToken(c, a)
}

func (h *Handler) respondToken(c *gin.Context, a *Admin) {
	token, _, err := h.Tokens.Sign(a)
	if err != nil {
		h.Log.Error().Err(err).Msg("[auth] sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to create token.", "data": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "admin": a})
}

func badAuth(c *gin.Context, data gin.H) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Failed to authenticate.", "data": data})
}
