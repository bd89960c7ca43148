package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/badrabdoph/sitekeeper/internal/common"
)

const sessionCookie = "sitekeeper_session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	token, expiresAt, err := h.guard.Login(ctx, c.RealIP(), req.Username, req.Password)
	if err != nil {
		var tooMany *common.TooManyAttemptsError
		if errors.As(err, &tooMany) {
			seconds := int(tooMany.RetryAfter.Seconds() + 0.5)
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":      err.Error(),
				"retryAfter": seconds,
			})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	h.setSessionCookie(c, token, expiresAt)
	return c.JSON(http.StatusOK, echo.Map{"expiresAt": expiresAt})
}

// handleLogout clears the client-side cookie. The token itself stays valid
// until natural expiry; logout is advisory.
func (h *Handler) handleLogout(c echo.Context) error {
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) handleSession(c echo.Context) error {
	token := sessionToken(c)
	if token == "" {
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}

	valid, expiresAt, renewed, err := h.guard.Status(token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if !valid {
		h.clearSessionCookie(c)
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}
	if renewed != "" {
		h.setSessionCookie(c, renewed, expiresAt)
	}
	return c.JSON(http.StatusOK, echo.Map{"authenticated": true, "expiresAt": expiresAt})
}

// requireSession gates the admin routes on a valid session cookie.
func (h *Handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := sessionToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if _, ok := h.guard.Verify(token); !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}

func sessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie scopes the session to the whole site. SameSite is
// strict only over a secure channel; a strict cookie on plain HTTP would
// break local development behind a proxy.
func (h *Handler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
	}
	if c.IsTLS() || c.Scheme() == "https" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	c.SetCookie(cookie)
}

func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
