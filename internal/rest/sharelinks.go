package rest

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type issueCodeRequest struct {
	// ExpiresInHours == 0 issues a permanent link.
	ExpiresInHours int    `json:"expiresInHours"`
	Note           string `json:"note"`
}

type extendRequest struct {
	Hours int `json:"hours"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleIssueCode(c echo.Context) error {
	var req issueCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.ExpiresInHours < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expiresInHours must not be negative"})
	}

	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	link, err := h.issuer.IssueCode(c.Request().Context(), expiresAt, req.Note)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *Handler) handleIssueToken(c echo.Context) error {
	token, expiresAt, err := h.issuer.IssueToken()
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"token": token, "expiresAt": expiresAt})
}

func (h *Handler) handleListLinks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.issuer.List(c.Request().Context()))
}

func (h *Handler) handleVerifyCode(c echo.Context) error {
	result := h.issuer.Verify(c.Request().Context(), c.Param("code"))
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) handleVerifyToken(c echo.Context) error {
	var req verifyTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, h.issuer.VerifyToken(req.Token))
}

func (h *Handler) handleExtendLink(c echo.Context) error {
	var req extendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Hours <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hours must be positive"})
	}
	link, err := h.issuer.Extend(c.Request().Context(), c.Param("code"), req.Hours)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, link)
}

func (h *Handler) handleRevokeLink(c echo.Context) error {
	link, err := h.issuer.Revoke(c.Request().Context(), c.Param("code"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, link)
}
