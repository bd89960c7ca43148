// Package rest exposes the admin API over HTTP. Handlers only marshal
// request and response objects; all state lives in the injected services.
package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/links"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/service"
	"github.com/badrabdoph/sitekeeper/internal/session"
	"github.com/badrabdoph/sitekeeper/internal/store"
)

type Handler struct {
	guard    *session.Guard
	issuer   *links.Issuer
	packages *service.PackagesService

	text         *store.Collection[content.TextField, *content.TextField]
	images       *store.Collection[content.Image, *content.Image]
	contact      *store.Collection[content.ContactField, *content.ContactField]
	sections     *store.Collection[content.SectionFlag, *content.SectionFlag]
	portfolio    *store.Collection[content.PortfolioItem, *content.PortfolioItem]
	testimonials *store.Collection[content.Testimonial, *content.Testimonial]

	log logging.Logger
}

func NewHandler(
	guard *session.Guard,
	issuer *links.Issuer,
	packages *service.PackagesService,
	text *store.Collection[content.TextField, *content.TextField],
	images *store.Collection[content.Image, *content.Image],
	contact *store.Collection[content.ContactField, *content.ContactField],
	sections *store.Collection[content.SectionFlag, *content.SectionFlag],
	portfolio *store.Collection[content.PortfolioItem, *content.PortfolioItem],
	testimonials *store.Collection[content.Testimonial, *content.Testimonial],
	log logging.Logger,
) *Handler {
	return &Handler{
		guard:        guard,
		issuer:       issuer,
		packages:     packages,
		text:         text,
		images:       images,
		contact:      contact,
		sections:     sections,
		portfolio:    portfolio,
		testimonials: testimonials,
		log:          log.With("module", "rest"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/login", h.handleLogin)
	e.POST("/api/logout", h.handleLogout)
	e.GET("/api/session", h.handleSession)

	// share-link verification is the public read path
	e.GET("/api/share/verify/:code", h.handleVerifyCode)
	e.POST("/api/share/verify-token", h.handleVerifyToken)

	admin := e.Group("/api", h.requireSession)

	registerKeyed(admin, "/text", h.text)
	registerKeyed(admin, "/images", h.images)
	registerKeyed(admin, "/contact", h.contact)
	registerKeyed(admin, "/sections", h.sections)

	registerListed(admin, "/portfolio", h.portfolio)
	registerListed(admin, "/testimonials", h.testimonials)

	admin.GET("/packages", h.handleListPackages)
	admin.POST("/packages", h.handleCreatePackage)
	admin.PATCH("/packages/:id", h.handleUpdatePackage)
	admin.DELETE("/packages/:id", h.handleDeletePackage)
	admin.GET("/packages/history", h.handleListHistory)
	admin.DELETE("/packages/history", h.handleClearHistory)
	admin.POST("/packages/history/:id/restore", h.handleRestore)

	admin.POST("/share-links", h.handleIssueCode)
	admin.POST("/share-links/tokens", h.handleIssueToken)
	admin.GET("/share-links", h.handleListLinks)
	admin.POST("/share-links/:code/extend", h.handleExtendLink)
	admin.POST("/share-links/:code/revoke", h.handleRevokeLink)
}

// registerKeyed wires the routes shared by every key-addressed entity:
// list, upsert by key, delete by key.
func registerKeyed[T any, PT store.Document[T]](g *echo.Group, prefix string, col *store.Collection[T, PT]) {
	g.GET(prefix, handleList(col))
	g.PUT(prefix, handleUpsert(col))
	g.DELETE(prefix+"/:key", handleDeleteByKey(col))
}

// registerListed wires the routes shared by the id-addressed list entities:
// list, create, partial update, delete.
func registerListed[T any, PT store.Document[T]](g *echo.Group, prefix string, col *store.Collection[T, PT]) {
	g.GET(prefix, handleList(col))
	g.POST(prefix, handleCreate(col))
	g.PATCH(prefix+"/:id", handleUpdate(col))
	g.DELETE(prefix+"/:id", handleDelete(col))
}

func handleList[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, col.List(c.Request().Context()))
	}
}

func handleUpsert[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		input := PT(new(T))
		if err := c.Bind(input); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if input.DocKey() == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "key is required"})
		}
		doc, err := col.UpsertByKey(c.Request().Context(), input)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, doc)
	}
}

func handleDeleteByKey[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		existing := col.GetByKey(ctx, c.Param("key"))
		if existing == nil {
			return c.JSON(http.StatusOK, echo.Map{"deleted": false})
		}
		removed, err := col.Delete(ctx, existing.DocMeta().ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"deleted": removed != nil})
	}
}

func handleCreate[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		input := PT(new(T))
		if err := c.Bind(input); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		doc, err := col.Create(c.Request().Context(), input)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusCreated, doc)
	}
}

func handleUpdate[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		}
		body, bindErr := readPartial[T, PT](c)
		if bindErr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": bindErr.Error()})
		}
		doc, err := col.Update(c.Request().Context(), id, applyPartial[T, PT](body))
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(http.StatusOK, doc)
	}
}

func handleDelete[T any, PT store.Document[T]](col *store.Collection[T, PT]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		}
		removed, err := col.Delete(c.Request().Context(), id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"deleted": removed != nil})
	}
}

func parseID(c echo.Context) (int, error) {
	return strconv.Atoi(c.Param("id"))
}

// jsonError maps service errors onto HTTP status codes.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, common.ErrLinkRevoked), errors.Is(err, common.ErrLinkPermanent):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}

// readPartial reads and validates the request body once, so a malformed
// payload is rejected before any mutation starts.
func readPartial[T any, PT store.Document[T]](c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	probe := PT(new(T))
	if err := json.Unmarshal(body, probe); err != nil {
		return nil, err
	}
	return body, nil
}

// applyPartial overlays the request body onto a copy of the stored
// document, so absent fields keep their current values.
func applyPartial[T any, PT store.Document[T]](body []byte) func(PT) {
	return func(doc PT) {
		// body was validated by readPartial
		_ = json.Unmarshal(body, doc)
	}
}
