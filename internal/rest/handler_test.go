package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badrabdoph/sitekeeper/internal/config"
	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/history"
	"github.com/badrabdoph/sitekeeper/internal/links"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/service"
	"github.com/badrabdoph/sitekeeper/internal/session"
	"github.com/badrabdoph/sitekeeper/internal/store"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestAPI(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AdminUser = "admin"
	cfg.AdminPassword = "s3cret"
	cfg.SecretKey = "0123456789abcdef"
	cfg.DataDir = t.TempDir()
	cfg.LoginMaxAttempts = 3
	cfg.LoginBackoffStep = 0

	log := testLogger()

	text := store.NewCollection[content.TextField, *content.TextField](content.TextFile, cfg.DataDir, log)
	images := store.NewCollection[content.Image, *content.Image](content.ImagesFile, cfg.DataDir, log)
	contact := store.NewCollection[content.ContactField, *content.ContactField](content.ContactFile, cfg.DataDir, log)
	sections := store.NewCollection[content.SectionFlag, *content.SectionFlag](content.SectionsFile, cfg.DataDir, log)
	portfolio := store.NewCollection[content.PortfolioItem, *content.PortfolioItem](content.PortfolioFile, cfg.DataDir, log)
	testimonials := store.NewCollection[content.Testimonial, *content.Testimonial](content.TestimonialsFile, cfg.DataDir, log)
	packages := store.NewCollection[content.Package, *content.Package](content.PackagesFile, cfg.DataDir, log)
	shareLinks := store.NewCollection[content.ShareLink, *content.ShareLink](content.ShareLinksFile, cfg.DataDir, log)

	ledger := history.NewLedger(content.HistoryFile, cfg.DataDir, log)
	svc := service.NewPackagesService(packages, ledger, log)
	issuer := links.NewIssuer(shareLinks, cfg.SecretKey, cfg.ShareCodePrefix, cfg.ShareCodeLength, cfg.ShareTokenTTL, log)
	guard := session.NewGuard(cfg, log)

	h := NewHandler(guard, issuer, svc, text, images, contact, sections, portfolio, testimonials, log)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo) []*http.Cookie {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/login", `{"username":"admin","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestLoginSetsSessionCookie(t *testing.T) {
	e := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/login", `{"username":"admin","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/login", `{"username":"admin","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)
	// plain-HTTP request gets the lax variant
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	e := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/api/text", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/text", "", []*http.Cookie{{Name: sessionCookie, Value: "garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := login(t, e)
	rec = doJSON(e, http.MethodGet, "/api/text", "", cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	e := newTestAPI(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(e, http.MethodPost, "/api/login", `{"username":"admin","password":"wrong"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := doJSON(e, http.MethodPost, "/api/login", `{"username":"admin","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		RetryAfter int `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.RetryAfter, 0)
}

func TestSessionStatus(t *testing.T) {
	e := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	cookies := login(t, e)
	rec = doJSON(e, http.MethodGet, "/api/session", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
}

func TestTextUpsertFlow(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPut, "/api/text", `{"key":"hero.title","value":"Welcome"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first content.TextField
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Welcome", first.Value)

	// same key keeps id and createdAt
	rec = doJSON(e, http.MethodPut, "/api/text", `{"key":"hero.title","value":"Hello"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var second content.TextField
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "Hello", second.Value)

	rec = doJSON(e, http.MethodGet, "/api/text", "", cookies)
	var fields []content.TextField
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	require.Len(t, fields, 1)

	// missing key is rejected
	rec = doJSON(e, http.MethodPut, "/api/text", `{"value":"no key"}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteByKey(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodDelete, "/api/sections/about", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":false`)

	doJSON(e, http.MethodPut, "/api/sections", `{"key":"about","visible":true}`, cookies)

	rec = doJSON(e, http.MethodDelete, "/api/sections/about", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)
}

func TestPortfolioPartialUpdate(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPost, "/api/portfolio", `{"title":"Wedding","imageUrl":"/img/w.jpg","sortOrder":2,"visible":true}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var item content.PortfolioItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	// only the provided field changes
	rec = doJSON(e, http.MethodPatch, "/api/portfolio/1", `{"title":"Weddings"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated content.PortfolioItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Weddings", updated.Title)
	assert.Equal(t, "/img/w.jpg", updated.ImageURL)
	assert.Equal(t, 2, updated.SortOrder)
	assert.True(t, updated.Visible)

	rec = doJSON(e, http.MethodPatch, "/api/portfolio/99", `{"title":"nope"}`, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/api/portfolio/abc", `{"title":"nope"}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPackageHistoryEndpoints(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPost, "/api/packages", `{"name":"Basic","price":"100"}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doJSON(e, http.MethodPatch, "/api/packages/1", `{"name":"Standard"}`, cookies)
	doJSON(e, http.MethodDelete, "/api/packages/1", "", cookies)

	rec = doJSON(e, http.MethodGet, "/api/packages/history", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, history.ActionDelete, entries[0].Action)
	assert.Equal(t, history.ActionUpdate, entries[1].Action)
	assert.Equal(t, history.ActionCreate, entries[2].Action)

	// restore the update snapshot
	updateEntry := entries[1]
	rec = doJSON(e, http.MethodPost, "/api/packages/history/"+strconvInt64(updateEntry.ID)+"/restore", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var restored content.Package
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	assert.Equal(t, 1, restored.ID)
	assert.Equal(t, "Standard", restored.Name)

	rec = doJSON(e, http.MethodDelete, "/api/packages/history", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/packages/history", "", cookies)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestPackageFeaturePatchKeepsHistoryIntact(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPost, "/api/packages", `{"name":"Basic","features":["a","b"]}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodPatch, "/api/packages/1", `{"features":["x"]}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodGet, "/api/packages/history", "", cookies)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	createEntry := entries[1]
	require.Equal(t, history.ActionCreate, createEntry.Action)
	assert.Equal(t, []string{"a", "b"}, createEntry.Snapshot.Features)

	rec = doJSON(e, http.MethodPost, "/api/packages/history/"+strconvInt64(createEntry.ID)+"/restore", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var restored content.Package
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	assert.Equal(t, []string{"a", "b"}, restored.Features)
}

func TestShareLinkLifecycle(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPost, "/api/share-links", `{"expiresInHours":1,"note":"client preview"}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var link content.ShareLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	require.NotEmpty(t, link.Code)
	require.NotNil(t, link.ExpiresAt)

	// verification is public
	rec = doJSON(e, http.MethodGet, "/api/share/verify/"+link.Code, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doJSON(e, http.MethodPost, "/api/share-links/"+link.Code+"/extend", `{"hours":24}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var extended content.ShareLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &extended))
	require.NotNil(t, extended.ExpiresAt)
	assert.True(t, extended.ExpiresAt.After(*link.ExpiresAt))

	rec = doJSON(e, http.MethodPost, "/api/share-links/"+link.Code+"/revoke", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/share/verify/"+link.Code, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)

	// extending a revoked link conflicts
	rec = doJSON(e, http.MethodPost, "/api/share-links/"+link.Code+"/extend", `{"hours":1}`, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/share-links", "", cookies)
	var all []content.ShareLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestShareTokenEndpoints(t *testing.T) {
	e := newTestAPI(t)
	cookies := login(t, e)

	rec := doJSON(e, http.MethodPost, "/api/share-links/tokens", "", cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	rec = doJSON(e, http.MethodPost, "/api/share/verify-token", `{"token":"`+issued.Token+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doJSON(e, http.MethodPost, "/api/share/verify-token", `{"token":"garbage"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func strconvInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
