package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// ShopCookie remembers the installed shop in the merchant's browser
	ShopCookie = "shop"
	// stateCookie carries the OAuth state between install and callback
	stateCookie = "shopsync_oauth_state"
	stateMaxAge = 10 * time.Minute
	shopMaxAge  = 30 * 24 * time.Hour
)

// OAuthProvider runs the storefront OAuth flow
type OAuthProvider interface {
	AuthorizeURL(shop, state string) (string, error)
	ExchangeAccessToken(ctx context.Context, shop, code string) (string, error)
	VerifyCallback(query url.Values) error
}

// SyncRegistrar registers the sync schedule of a newly installed shop
type SyncRegistrar interface {
	StartSyncForTenant(tenant string) bool
}

// OAuthConfig holds the cookie and token settings of the install flow
type OAuthConfig struct {
	// TokenTTL is the lifetime of stored tokens; zero never expires
	TokenTTL time.Duration
	// SecureCookies marks cookies as HTTPS-only
	SecureCookies bool
}

// OAuthHandler serves the app install and OAuth callback endpoints
type OAuthHandler struct {
	BaseHandler
	provider    OAuthProvider
	credentials integration.CredentialStore
	registrar   SyncRegistrar
	config      OAuthConfig
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(provider OAuthProvider, credentials integration.CredentialStore, registrar SyncRegistrar, cfg OAuthConfig) *OAuthHandler {
	return &OAuthHandler{
		provider:    provider,
		credentials: credentials,
		registrar:   registrar,
		config:      cfg,
	}
}

// RegisterRoutes registers /, /install and /auth/callback on the root group
func (h *OAuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.Home)
	rg.GET("/install", h.Install)
	rg.GET("/auth/callback", h.Callback)
}

// Home is the app entry point. The shop comes from the query or from the
// cookie set on install; installed shops go to their status page, others
// start the install flow.
func (h *OAuthHandler) Home(c *gin.Context) {
	raw := c.Query("shop")
	if raw == "" {
		raw, _ = c.Cookie(ShopCookie)
	}
	if raw == "" {
		h.BadRequest(c, "Missing shop parameter")
		return
	}
	shop, err := integration.NormalizeShopDomain(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	_, installed, err := h.credentials.Get(c.Request.Context(), shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !installed {
		c.Redirect(http.StatusFound, "/install?"+url.Values{"shop": {shop}}.Encode())
		return
	}
	c.Redirect(http.StatusFound, "/api/v1/shops/"+shop+"/status")
}

// Install redirects the merchant to the storefront authorize page
func (h *OAuthHandler) Install(c *gin.Context) {
	shop, err := integration.NormalizeShopDomain(c.Query("shop"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	state := uuid.NewString()
	authorizeURL, err := h.provider.AuthorizeURL(shop, state)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateMaxAge.Seconds()), "/auth", "", h.config.SecureCookies, true)
	c.Redirect(http.StatusFound, authorizeURL)
}

// Callback exchanges the authorization code, stores the token, registers the
// shop schedule and redirects to the shop status page
func (h *OAuthHandler) Callback(c *gin.Context) {
	shop, err := integration.NormalizeShopDomain(c.Query("shop"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.BadRequest(c, "Missing authorization code")
		return
	}

	expected, err := c.Cookie(stateCookie)
	state := c.Query("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "OAuth state mismatch")
		return
	}

	ctx, log := logger.WithShop(c.Request.Context(), logger.GetGinLogger(c), shop)

	if err := h.provider.VerifyCallback(c.Request.URL.Query()); err != nil {
		log.Warn("OAuth callback rejected", zap.Error(err))
		if errors.Is(err, integration.ErrPlatformAuthFailed) {
			h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "OAuth callback signature mismatch")
			return
		}
		h.HandleError(c, err)
		return
	}

	token, err := h.provider.ExchangeAccessToken(ctx, shop, code)
	if err != nil {
		log.Warn("OAuth code exchange failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	if err := h.credentials.Set(ctx, shop, token, h.config.TokenTTL); err != nil {
		h.HandleError(c, err)
		return
	}

	registered := h.registrar.StartSyncForTenant(shop)
	log.Info("Shop installed", zap.Bool("newly_scheduled", registered))

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.config.SecureCookies, true)
	c.SetCookie(ShopCookie, shop, int(shopMaxAge.Seconds()), "/", "", h.config.SecureCookies, true)
	c.Redirect(http.StatusFound, "/api/v1/shops/"+shop+"/status")
}
