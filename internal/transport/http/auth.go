package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/transport/http/middleware"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/iamasit07/chat-app/backend/pkg/httputil"
	"github.com/iamasit07/chat-app/backend/pkg/useragent"
	jww "github.com/spf13/jwalterweatherman"
)

const profileCacheTTL = time.Hour

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfilePic(ctx context.Context, id int64, url string) (*domain.User, error)
}

type SessionService interface {
	IssueSession(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*auth.Token, error)
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
	SessionHistory(ctx context.Context, userID int64, limit int) ([]domain.UserSession, error)
	TTL() time.Duration
}

type AvatarStore interface {
	StoreAvatar(ctx context.Context, ref string) (string, error)
}

// ProfileCache caches /check responses. Get returns "" on a miss.
type ProfileCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// SessionSockets closes the live connections opened with one session token.
type SessionSockets interface {
	DisconnectSession(sessionID, reason string) int
}

type AuthHandler struct {
	Users    UserStore
	Sessions SessionService
	Avatars  AvatarStore
	Cache    ProfileCache   // optional
	Sockets  SessionSockets // optional
	Cookie   httputil.CookieOptions
}

type authResponse struct {
	domain.UserResponse
	Token string `json:"token,omitempty"`
}

func profileCacheKey(userID int64) string {
	return fmt.Sprintf("user_profile:%d", userID)
}

func (h *AuthHandler) startSession(c *gin.Context, user *domain.User) (*auth.Token, error) {
	token, err := h.Sessions.IssueSession(c.Request.Context(), user.ID,
		useragent.Device(c.Request), useragent.ClientIP(c.Request))
	if err != nil {
		return nil, err
	}
	httputil.SetAuthCookie(c.Writer, token.Value, h.Sessions.TTL(), h.Cookie)
	return token, nil
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		badRequest(c, "All fields are required!")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(c, "signup", err)
		return
	}
	if !strings.Contains(req.Email, "@") {
		badRequest(c, "Invalid email format")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, "signup", err)
		return
	}

	user := &domain.User{FullName: req.FullName, Email: req.Email, PasswordHash: hash}
	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		writeError(c, "signup", err)
		return
	}

	token, err := h.startSession(c, user)
	if err != nil {
		writeError(c, "signup", err)
		return
	}

	jww.INFO.Printf("[AUTH] User %d signed up", user.ID)
	c.JSON(http.StatusCreated, authResponse{UserResponse: user.Response(), Token: token.Value})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	user, err := h.Users.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(c, "login", err)
		return
	}
	if err != nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		badRequest(c, "Invalid credentials")
		return
	}

	token, err := h.startSession(c, user)
	if err != nil {
		writeError(c, "login", err)
		return
	}

	jww.INFO.Printf("[AUTH] User %d logged in", user.ID)
	c.JSON(http.StatusOK, authResponse{UserResponse: user.Response(), Token: token.Value})
}

// Logout clears the cookie and, when the request carries a valid token,
// revokes it. It succeeds for anonymous callers too.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := httputil.GetTokenFromRequest(c.Request); err == nil {
		if claims, err := h.Sessions.Verify(c.Request.Context(), raw); err == nil {
			if err := h.Sessions.Revoke(c.Request.Context(), claims); err != nil {
				jww.WARN.Printf("[AUTH] Failed to revoke session for user %d: %v", claims.UserID, err)
			}
			if h.Sockets != nil {
				h.Sockets.DisconnectSession(claims.ID, "Logged out")
			}
		}
	}

	httputil.ClearAuthCookie(c.Writer, h.Cookie)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) CheckAuth(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	ctx := c.Request.Context()

	if h.Cache != nil {
		if cached, err := h.Cache.Get(ctx, profileCacheKey(userID)); err == nil && cached != "" {
			var resp domain.UserResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				c.Header("X-Cache", "HIT")
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		writeError(c, "check auth", err)
		return
	}
	resp := user.Response()

	if h.Cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.Cache.Set(ctx, profileCacheKey(userID), data, profileCacheTTL); err != nil {
				jww.DEBUG.Printf("[AUTH] Failed to cache profile %d: %v", userID, err)
			}
		}
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var req struct {
		ProfilePic string `json:"profilePic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProfilePic) == "" {
		badRequest(c, "Profile pic is required")
		return
	}
	ctx := c.Request.Context()

	url, err := h.Avatars.StoreAvatar(ctx, req.ProfilePic)
	if err != nil {
		writeError(c, "update profile", err)
		return
	}
	user, err := h.Users.UpdateProfilePic(ctx, userID, url)
	if err != nil {
		writeError(c, "update profile", err)
		return
	}

	if h.Cache != nil {
		_ = h.Cache.Del(ctx, profileCacheKey(userID))
	}
	c.JSON(http.StatusOK, gin.H{"updatedUser": user.Response()})
}

func (h *AuthHandler) GetSessionHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	sessions, err := h.Sessions.SessionHistory(c.Request.Context(), userID, 10)
	if err != nil {
		writeError(c, "session history", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
