package useragent

import (
	"net"
	"net/http"
	"strings"
)

// Client is the browser and OS a session was opened from, as recorded in
// the session history.
type Client struct {
	Browser string
	Version string
	OS      string
}

func (c Client) String() string {
	if c.Version != "" {
		return c.Browser + " " + c.Version + " on " + c.OS
	}
	return c.Browser + " on " + c.OS
}

// order matters: Edge and Chrome both claim Safari, Edge also claims Chrome
var browsers = []struct {
	name   string
	token  string
	unless string
}{
	{"Edge", "Edg/", ""},
	{"Chrome", "Chrome/", ""},
	{"Firefox", "Firefox/", ""},
	{"Safari", "Safari/", "Chrome"},
}

var systems = []struct {
	name  string
	token string
}{
	{"Windows 10/11", "Windows NT 10.0"},
	{"Windows 8.1", "Windows NT 6.3"},
	{"Windows 7", "Windows NT 6.1"},
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iOS", "iPhone"},
	{"iOS", "iPad"},
	{"macOS", "Mac OS X"},
	{"Linux", "Linux"},
}

func Parse(ua string) Client {
	c := Client{Browser: "Unknown Browser", OS: "Unknown OS"}
	for _, b := range browsers {
		if strings.Contains(ua, b.token) && (b.unless == "" || !strings.Contains(ua, b.unless)) {
			c.Browser = b.name
			c.Version = majorVersion(ua, b.token)
			break
		}
	}
	for _, s := range systems {
		if strings.Contains(ua, s.token) {
			c.OS = s.name
			break
		}
	}
	return c
}

func majorVersion(ua, token string) string {
	idx := strings.Index(ua, token)
	if idx < 0 {
		return ""
	}
	rest := ua[idx+len(token):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return rest[:end]
}

// Device describes the request's client, or "Unknown Device" without a
// User-Agent header.
func Device(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return "Unknown Device"
	}
	return Parse(ua).String()
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
