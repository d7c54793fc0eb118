package httputil

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const AuthCookieName = "jwt"

// CookieOptions controls the transport-level session credential.
type CookieOptions struct {
	Secure bool
}

func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, opts CookieOptions) {
	cookie := &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
	}

	// SameSite=None requires Secure=true, so use Lax for plain-http development
	if opts.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, cookie)
}

// ClearAuthCookie expires the session cookie (Max-Age=0 on the wire).
func ClearAuthCookie(w http.ResponseWriter, opts CookieOptions) {
	cookie := &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
	}

	http.SetCookie(w, cookie)
}

// GetTokenFromCookie extracts the JWT token from the auth cookie
func GetTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return "", errors.New("auth cookie not found")
	}

	if cookie.Value == "" {
		return "", errors.New("auth cookie is empty")
	}

	return cookie.Value, nil
}

// GetTokenFromRequest looks at the cookie, then the Authorization header,
// then the "token" query parameter (browsers cannot set headers on a
// websocket upgrade).
func GetTokenFromRequest(r *http.Request) (string, error) {
	token, err := GetTokenFromCookie(r)
	if err == nil && token != "" {
		return token, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimSpace(authHeader[7:]), nil
		}
		return authHeader, nil
	}

	if q := r.URL.Query().Get("token"); q != "" {
		return q, nil
	}

	return "", errors.New("no auth token found in cookie, header or query")
}
