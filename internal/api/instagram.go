package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"instadm/internal/callback"
	"instadm/internal/instagram"
	"instadm/internal/models"
)

func (h *Handler) instagramCallback(c *gin.Context) {
	res, err := h.callback.Run(c.Request.Context(), c.Query("code"))
	if err != nil {
		// the browser went away mid-flow; nothing is left to render
		log.Printf("instagram callback aborted in state %s: %v", res.State, err)
		c.Abort()
		return
	}
	c.HTML(http.StatusOK, "callback.html", callback.NewView(res, callback.ResolveLocale(c.Request)))
}

func (h *Handler) exchangeToken(c *gin.Context) {
	var req instagram.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	if req.ClientID != "" && req.ClientID != h.instagram.AppID() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id does not match this app"})
		return
	}
	token, err := h.instagram.Exchange(c.Request.Context(), code, req.RedirectURI)
	if err != nil {
		var apiErr *instagram.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":         apiErr.Error(),
				"error_type":    apiErr.Type,
				"error_message": apiErr.Message,
			})
			return
		}
		log.Printf("instagram token exchange error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *Handler) listMessages(c *gin.Context) {
	token := strings.TrimSpace(c.Query("access_token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_token is required"})
		return
	}
	conversations, err := h.instagram.Conversations(c.Request.Context(), token)
	if err != nil {
		log.Printf("instagram conversations error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	c.JSON(http.StatusOK, conversations)
}
