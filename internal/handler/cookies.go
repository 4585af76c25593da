package handler

import "github.com/gin-gonic/gin"

// Cookie contract of the auth flows. All cookies are HttpOnly; Secure
// follows the deployment environment.
const (
	CookieSession      = "session_id"
	CookieOAuthState   = "oauth_state"
	CookieRedirectURI  = "oauth_redirect_uri"
	CookieAuthRedirect = "auth_redirect"
)

// CookieOptions carries the deployment-dependent cookie parameters
type CookieOptions struct {
	Secure        bool
	SessionMaxAge int
	FlowMaxAge    int
}

func setCookie(c *gin.Context, opts CookieOptions, name, value string, maxAge int) {
	c.SetCookie(name, value, maxAge, "/", "", opts.Secure, true)
}

func deleteCookie(c *gin.Context, opts CookieOptions, name string) {
	c.SetCookie(name, "", -1, "/", "", opts.Secure, true)
}
