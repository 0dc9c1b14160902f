package api

import (
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"instadm/internal/auth"
	"instadm/internal/authform"
	"instadm/internal/authprovider"
	"instadm/internal/viewstate"
)

const oauthStateCookie = "instadm_oauth_state"

type authPageView struct {
	CSRFField string
	CSRFToken string
	SignIn    authform.Status
	SignUp    authform.Status
	MagicLink authform.Status
	Provider  authform.Status
}

func (h *Handler) authPage(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	csrfToken, err := h.auth.EnsureCSRFCookie(c)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not start session")
		return
	}
	statuses, err := h.forms.Statuses(c.Request.Context(), viewID)
	if err != nil {
		log.Printf("load auth statuses error: %v", err)
		statuses = map[authform.Action]authform.Status{}
	}
	c.HTML(http.StatusOK, "auth.html", authPageView{
		CSRFField: auth.CSRFFormField,
		CSRFToken: csrfToken,
		SignIn:    statuses[authform.ActionSignIn],
		SignUp:    statuses[authform.ActionSignUp],
		MagicLink: statuses[authform.ActionMagicLink],
		Provider:  statuses[authform.ActionProvider],
	})
}

func (h *Handler) signIn(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	session, err := h.forms.SignIn(c.Request.Context(), viewID, c.PostForm("email"), c.PostForm("password"))
	logActionError(authform.ActionSignIn, err)
	if session != nil && h.accounts != nil {
		h.startSession(c, session)
	}
	backToAuth(c)
}

func (h *Handler) signUp(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	err := h.forms.SignUp(c.Request.Context(), viewID, c.PostForm("email"), c.PostForm("password"))
	logActionError(authform.ActionSignUp, err)
	backToAuth(c)
}

func (h *Handler) magicLink(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	err := h.forms.SendMagicLink(c.Request.Context(), viewID, c.PostForm("email"))
	logActionError(authform.ActionMagicLink, err)
	backToAuth(c)
}

func (h *Handler) signInWithProvider(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	provider := c.PostForm("provider")
	if provider == "" {
		provider = authprovider.Google
	}
	redirect, err := h.forms.SignInWithProvider(c.Request.Context(), viewID, provider)
	if err != nil || redirect == "" {
		logActionError(authform.ActionProvider, err)
		backToAuth(c)
		return
	}
	// bind the OAuth state to this browser so the callback can't be replayed elsewhere
	if u, err := url.Parse(redirect); err == nil {
		if state := u.Query().Get("state"); state != "" {
			setCookie(c, &http.Cookie{
				Name:     oauthStateCookie,
				Value:    state,
				MaxAge:   600,
				Path:     "/auth/callback",
				Secure:   gin.Mode() == gin.ReleaseMode,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	c.Redirect(http.StatusSeeOther, redirect)
}

func (h *Handler) verifyLink(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	ctx := c.Request.Context()
	session, err := h.accounts.VerifyLink(ctx, c.Query("token"))
	if err != nil {
		h.record(c, viewID, authform.ActionMagicLink, authprovider.Message(err), true)
		backToAuth(c)
		return
	}
	h.startSession(c, session)
	h.record(c, viewID, authform.ActionSignIn, authform.MsgSignedIn, false)
	backToAuth(c)
}

func (h *Handler) googleCallback(c *gin.Context) {
	viewID := viewstate.BrowserID(c, h.viewTTL)
	state := c.Query("state")
	expected, _ := c.Cookie(oauthStateCookie)
	setCookie(c, &http.Cookie{Name: oauthStateCookie, Value: "", MaxAge: -1, Path: "/auth/callback"})

	if desc := c.Query("error_description"); desc != "" {
		h.record(c, viewID, authform.ActionProvider, desc, true)
		backToAuth(c)
		return
	}
	if e := c.Query("error"); e != "" {
		h.record(c, viewID, authform.ActionProvider, e, true)
		backToAuth(c)
		return
	}
	if state == "" || state != expected {
		h.record(c, viewID, authform.ActionProvider, "OAuth state is invalid or has expired", true)
		backToAuth(c)
		return
	}
	session, err := h.accounts.CompleteGoogle(c.Request.Context(), state, c.Query("code"))
	if err != nil {
		log.Printf("google sign-in error: %v", err)
		h.record(c, viewID, authform.ActionProvider, authprovider.Message(err), true)
		backToAuth(c)
		return
	}
	h.startSession(c, session)
	h.record(c, viewID, authform.ActionProvider, authform.MsgSignedIn, false)
	backToAuth(c)
}

func (h *Handler) startSession(c *gin.Context, session *authprovider.Session) {
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		log.Printf("issue csrf token error: %v", err)
		return
	}
	h.setAuthCookies(c, session.AccessToken, csrfToken)
}

func (h *Handler) record(c *gin.Context, viewID string, action authform.Action, message string, failed bool) {
	if err := h.forms.Record(c.Request.Context(), viewID, action, message, failed); err != nil {
		log.Printf("record %s status error: %v", action, err)
	}
}

// logActionError logs failures other than the provider rejections already shown on the page.
func logActionError(action authform.Action, err error) {
	if err == nil {
		return
	}
	if _, ok := err.(*authprovider.ProviderError); ok {
		return
	}
	log.Printf("auth action %s error: %v", action, err)
}

// backToAuth finishes a form POST with a redirect so a reload does not resubmit it.
func backToAuth(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/auth")
}
