package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aichukanov/docta-auth/internal/service"
	"github.com/gin-gonic/gin"
)

// OAuthHandler drives the browser-facing side of the OAuth flows: starting
// a login and receiving the provider callback. All failures redirect with an
// opaque error code; no detail reaches the client.
type OAuthHandler struct {
	oauthService service.OAuthService
	baseURL      string
	cookies      CookieOptions
}

// NewOAuthHandler creates a new OAuth handler. baseURL is the public origin
// of this service, used to build callback redirect URIs.
func NewOAuthHandler(oauthService service.OAuthService, baseURL string, cookies CookieOptions) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		baseURL:      strings.TrimRight(baseURL, "/"),
		cookies:      cookies,
	}
}

// Begin starts an OAuth login flow: issues the signed CSRF state, pins the
// redirect URI and optional post-login deep link into cookies, and redirects
// to the provider's authorize endpoint.
func (h *OAuthHandler) Begin(c *gin.Context) {
	providerName := c.Param("provider")
	redirectURI := fmt.Sprintf("%s/auth/%s/callback", h.baseURL, providerName)

	authURL, state, err := h.oauthService.AuthCodeURL(providerName, redirectURI)
	if err != nil {
		c.Redirect(http.StatusFound, "/?error="+string(service.CodeCallbackFailed))
		return
	}

	setCookie(c, h.cookies, CookieOAuthState, state, h.cookies.FlowMaxAge)
	setCookie(c, h.cookies, CookieRedirectURI, redirectURI, h.cookies.FlowMaxAge)

	if target := c.Query("redirect"); isLocalPath(target) {
		setCookie(c, h.cookies, CookieAuthRedirect, target, h.cookies.FlowMaxAge)
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback receives the provider redirect and runs the identity resolution
// state machine. The flow cookies are consumed before anything else happens,
// regardless of outcome.
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")

	stateCookie, _ := c.Cookie(CookieOAuthState)
	redirectURI, _ := c.Cookie(CookieRedirectURI)
	sessionID, _ := c.Cookie(CookieSession)

	deleteCookie(c, h.cookies, CookieOAuthState)
	deleteCookie(c, h.cookies, CookieRedirectURI)

	in := &service.CallbackInput{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		ProviderErr: c.Query("error"),
		StateCookie: stateCookie,
		RedirectURI: redirectURI,
		SessionID:   sessionID,
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	}

	result, err := h.oauthService.Callback(c.Request.Context(), providerName, in)
	if err != nil {
		var cbErr *service.CallbackError
		code := service.CodeCallbackFailed
		if errors.As(err, &cbErr) {
			code = cbErr.Code
		}
		c.Redirect(http.StatusFound, "/?error="+string(code))
		return
	}

	setCookie(c, h.cookies, CookieSession, result.SessionID, h.cookies.SessionMaxAge)

	target := "/"
	if pending, err := c.Cookie(CookieAuthRedirect); err == nil && isLocalPath(pending) {
		target = pending
		deleteCookie(c, h.cookies, CookieAuthRedirect)
	}

	c.Redirect(http.StatusFound, target)
}

// isLocalPath accepts only same-origin absolute paths as post-login
// redirect targets, rejecting open-redirect vectors like "//evil.com".
func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}
