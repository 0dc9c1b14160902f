// Package viewstate keeps small per-browser records between a form POST and
// the page render that follows it.
package viewstate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CookieName carries the browser id.
const CookieName = "instadm_view"

const DefaultTTL = 30 * time.Minute

var ErrInvalidID = errors.New("invalid view id")

// Store holds raw field values grouped by browser id.
type Store interface {
	Put(ctx context.Context, id, field string, value []byte) error
	All(ctx context.Context, id string) (map[string][]byte, error)
}

// BrowserID returns the id from the view cookie, minting and setting a new one
// when the cookie is absent or malformed.
func BrowserID(c *gin.Context, ttl time.Duration) string {
	if raw, err := c.Cookie(CookieName); err == nil {
		if _, err := uuid.Parse(raw); err == nil {
			return raw
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		MaxAge:   int(ttl.Seconds()),
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
