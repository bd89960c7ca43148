package rest

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/badrabdoph/sitekeeper/internal/content"
)

func (h *Handler) handleListPackages(c echo.Context) error {
	return c.JSON(http.StatusOK, h.packages.List(c.Request().Context()))
}

func (h *Handler) handleCreatePackage(c echo.Context) error {
	var input content.Package
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	pkg, err := h.packages.Create(c.Request().Context(), &input)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, pkg)
}

func (h *Handler) handleUpdatePackage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	body, bindErr := readPartial[content.Package, *content.Package](c)
	if bindErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": bindErr.Error()})
	}
	pkg, err := h.packages.Update(c.Request().Context(), id, applyPartial[content.Package, *content.Package](body))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) handleDeletePackage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	deleted, err := h.packages.Delete(c.Request().Context(), id)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}

func (h *Handler) handleListHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, h.packages.History(c.Request().Context()))
}

func (h *Handler) handleClearHistory(c echo.Context) error {
	if err := h.packages.ClearHistory(c.Request().Context()); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) handleRestore(c echo.Context) error {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	pkg, err := h.packages.Restore(c.Request().Context(), entryID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}
