// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"net/http"
	"time"
)

// CookieOptions controls the attributes of token cookies.
type CookieOptions struct {
	// Production enables HttpOnly, Secure and SameSite=None.
	Production bool
	Domain     string
	SessionTTL time.Duration
	EmailTTL   time.Duration
}

func (o CookieOptions) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl > 0:
		c.MaxAge = int(ttl / time.Second)
		c.Expires = time.Now().Add(ttl)
	case ttl < 0:
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
	if o.Production {
		c.HttpOnly = true
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// CookieCarrier carries tokens in HTTP cookies.
type CookieCarrier struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions
}

// NewCookieCarrier creates a carrier reading from r and writing to w.
func NewCookieCarrier(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieCarrier {
	return &CookieCarrier{w: w, r: r, opts: opts}
}

// Token returns the value of the named cookie.
func (c *CookieCarrier) Token(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Discard expires the named cookie on the client.
func (c *CookieCarrier) Discard(name string) {
	http.SetCookie(c.w, c.opts.cookie(name, "", -1))
}

// SetSession stores a session token.
func (c *CookieCarrier) SetSession(token string) {
	http.SetCookie(c.w, c.opts.cookie(SessionToken, token, c.opts.SessionTTL))
}

// SetEmail stores an email-challenge token.
func (c *CookieCarrier) SetEmail(token string) {
	http.SetCookie(c.w, c.opts.cookie(EmailToken, token, c.opts.EmailTTL))
}
