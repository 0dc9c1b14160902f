package api

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"instadm/internal/auth"
	"instadm/internal/authform"
	"instadm/internal/authprovider"
	"instadm/internal/callback"
	"instadm/internal/instagram"
	"instadm/internal/models"
)

// Accounts is the self-hosted identity service. It is nil when sign-in is
// delegated to a hosted provider.
type Accounts interface {
	VerifyLink(ctx context.Context, token string) (*authprovider.Session, error)
	CompleteGoogle(ctx context.Context, state, code string) (*authprovider.Session, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// InstagramAPI is the server-side Instagram client used by the proxy routes.
type InstagramAPI interface {
	AppID() string
	Exchange(ctx context.Context, code, redirectURI string) (*instagram.Token, error)
	Conversations(ctx context.Context, accessToken string) ([]models.Conversation, error)
}

// Options wires the handler's collaborators.
type Options struct {
	Auth      *auth.Service
	Forms     *authform.Controller
	Accounts  Accounts
	Instagram InstagramAPI
	Callback  *callback.Flow
	// ViewTTL is the lifetime of the browser view-state cookie.
	ViewTTL        time.Duration
	AllowedOrigins []string
}

// Handler wires HTTP routes to the auth screen, the Instagram callback and the proxy.
type Handler struct {
	auth           *auth.Service
	forms          *authform.Controller
	accounts       Accounts
	instagram      InstagramAPI
	callback       *callback.Flow
	viewTTL        time.Duration
	allowedOrigins []string
}

// NewHandler constructs a Handler instance.
func NewHandler(opts Options) *Handler {
	return &Handler{
		auth:           opts.Auth,
		forms:          opts.Forms,
		accounts:       opts.Accounts,
		instagram:      opts.Instagram,
		callback:       opts.Callback,
		viewTTL:        opts.ViewTTL,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	LoadTemplates(router)
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/auth") })

	pages := router.Group("/auth")
	pages.GET("", h.authPage)
	forms := pages.Group("")
	forms.Use(h.auth.CSRFMiddleware())
	forms.POST("/signin", h.signIn)
	forms.POST("/signup", h.signUp)
	forms.POST("/magic-link", h.magicLink)
	forms.POST("/provider", h.signInWithProvider)
	if h.accounts != nil {
		pages.GET("/verify", h.verifyLink)
		pages.GET("/callback/google", h.googleCallback)
	}

	router.GET("/instagram/callback", h.instagramCallback)

	api := router.Group("/api")
	api.Use(cors.New(h.corsConfig()))
	// preflight requests only reach the cors middleware through a matching route
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/instagram/auth/token", h.exchangeToken)
	api.GET("/instagram/messages", h.listMessages)
	if h.accounts != nil {
		userRoutes := api.Group("")
		userRoutes.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
		userRoutes.GET("/me", h.currentUser)
		userRoutes.DELETE("/me", h.deleteUser)
		userRoutes.POST("/logout", h.logoutUser)
	}
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(h.allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.allowedOrigins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cfg
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

func (h *Handler) currentUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	user, err := h.accounts.UserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"confirmed":  user.Confirmed,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		if err := h.auth.RevokeToken(c.Request.Context(), authToken); err != nil {
			log.Printf("revoke token error: %v", err)
		}
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
