package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/getf1tickets/order-service/configs"
	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/logging"
	"github.com/getf1tickets/order-service/internal/usecase"
)

const userKey = "auth.user"

// Auth verifies bearer tokens issued by the external auth service and loads
// the acting user (with addresses) into the request context. The user value
// is immutable once set; handlers read it via CurrentUser.
type Auth struct {
	cfg   configs.Config
	users usecase.UserDirectory
}

func NewAuth(cfg configs.Config, users usecase.UserDirectory) *Auth {
	return &Auth{cfg: cfg, users: users}
}

// Authenticate checks the JWT and resolves the subject user.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.verify(c)
		if !ok {
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			unauth(c, "invalid_token", "missing subject")
			return
		}

		user, err := a.users.GetWithAddresses(c.Request.Context(), sub)
		if errors.Is(err, domain.ErrNotFound) {
			unauth(c, "invalid_token", "unknown user")
			return
		}
		if err != nil {
			// Directory unavailable is a server fault, not a bad credential.
			logging.From(c).Error("user lookup failed", "sub", sub, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. Must run after Authenticate.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauth(c, "invalid_token", "no user in context")
			return
		}
		if !user.Admin {
			forbidden(c, "insufficient_scope", "admin only")
			return
		}
		c.Next()
	}
}

func (a *Auth) verify(c *gin.Context) (jwt.MapClaims, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		unauth(c, "invalid_request", "missing bearer token")
		return nil, false
	}

	raw := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.cfg.Security.JWTSecret), nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !token.Valid {
		unauth(c, "invalid_token", "invalid jwt")
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		unauth(c, "invalid_token", "claims parsing error")
		return nil, false
	}
	if claims["iss"] != a.cfg.Security.Issuer || claims["aud"] != a.cfg.Security.Audience {
		unauth(c, "invalid_token", "iss/aud mismatch")
		return nil, false
	}
	return claims, true
}

// CurrentUser returns the authenticated user placed by Authenticate.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

// SetCurrentUser is a test hook for handler tests that bypass Authenticate.
func SetCurrentUser(c *gin.Context, u domain.User) {
	c.Set(userKey, u)
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
