package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Aidin1998/botcontrol/common/apiutil"
	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/identities"
	"github.com/Aidin1998/botcontrol/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxUserID     = "userID"
	ctxUsername   = "username"
	ctxQueryToken = "queryToken"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// liftQueryToken moves ?token= from the URL into the request context
func liftQueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.Contains(c.Request.URL.RawQuery, "token") {
			q := c.Request.URL.Query()
			if _, ok := q["token"]; ok {
				c.Set(ctxQueryToken, q.Get("token"))
				q.Del("token")
				c.Request.URL.RawQuery = q.Encode()
				c.Request.RequestURI = c.Request.URL.RequestURI()
			}
		}
		c.Next()
	}
}

// authMiddleware rejects requests without a valid token.
// allowQuery also accepts ?token= for clients that cannot set headers.
func (s *Server) authMiddleware(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && allowQuery {
			token = c.GetString(ctxQueryToken)
		}
		if token == "" {
			apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Access denied. No token provided.", "", nil)
			return
		}

		claims, err := s.identities.ParseToken(token)
		if err != nil {
			apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", "", nil)
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apiutil.WriteErrorResponse(c, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	res, err := s.identities.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.loginFailed(c, req.Username, err)
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	c.Set(ctxUsername, res.User.Username)
	s.auditLog(c, audit.ActionLogin, res.User.ID, "success", nil)
	c.JSON(http.StatusOK, res)
}

func (s *Server) loginFailed(c *gin.Context, username string, err error) {
	c.Set(ctxUsername, username)
	switch {
	case errors.Is(err, identities.ErrMissingCredentials):
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		apiutil.WriteErrorResponse(c, http.StatusBadRequest, "Username and password are required", "", nil)
	case errors.Is(err, identities.ErrInvalidCredentials):
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		s.auditLog(c, audit.ActionLoginFailed, "", "failure", nil)
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Invalid credentials", "", nil)
	case errors.Is(err, identities.ErrAccountDisabled):
		metrics.LoginAttempts.WithLabelValues("disabled").Inc()
		s.auditLog(c, audit.ActionLoginFailed, "", "disabled", nil)
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Account is disabled", "", nil)
	default:
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		s.internalError(c, "login", err)
	}
}

func (s *Server) verify(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "No token provided", "", nil)
		return
	}

	user, err := s.identities.Verify(c.Request.Context(), token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"user": user})
	case errors.Is(err, identities.ErrInvalidToken):
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", "", nil)
	case errors.Is(err, identities.ErrUserNotFound):
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Invalid token", "", nil)
	case errors.Is(err, identities.ErrAccountDisabled):
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Account is disabled", "", nil)
	default:
		s.internalError(c, "verify", err)
	}
}

func (s *Server) profile(c *gin.Context) {
	profile, err := s.identities.Profile(c.Request.Context(), c.GetString(ctxUserID))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"user": profile})
	case errors.Is(err, identities.ErrUserNotFound):
		apiutil.WriteErrorResponse(c, http.StatusNotFound, "User not found", "", nil)
	case errors.Is(err, identities.ErrAccountDisabled):
		apiutil.WriteErrorResponse(c, http.StatusUnauthorized, "Account is disabled", "", nil)
	default:
		s.internalError(c, "profile", err)
	}
}

// logout is stateless; the client discards its token
func (s *Server) logout(c *gin.Context) {
	if claims, err := s.identities.ParseToken(bearerToken(c)); err == nil {
		c.Set(ctxUsername, claims.Username)
		s.auditLog(c, audit.ActionLogout, claims.UserID, "success", nil)
	}
	s.logger.Debug("Logout", zap.String("username", c.GetString(ctxUsername)))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
