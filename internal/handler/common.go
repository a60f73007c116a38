package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/middleware"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/blobstore"
	"github.com/suteetoe/testtrack/pkg/database"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/pkg/mailer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	mail    mailer.Mailer
	images  blobstore.Store
	devMode bool
)

// Init wires the external collaborators the handlers depend on
func Init(m mailer.Mailer, b blobstore.Store, development bool) {
	mail = m
	images = b
	devMode = development
}

// tenantDB returns a request-scoped gorm handle with the resolved tenant and
// actor attached for the audit callback. Only reachable behind
// RequireTenantContext, so the claims are present.
func tenantDB(c echo.Context) (*gorm.DB, string, uint) {
	tenantID, _ := middleware.TenantID(c)
	userID, _ := middleware.UserID(c)
	db := store.WithAudit(database.GetDB().WithContext(c.Request().Context()), tenantID, userID)
	return db, tenantID, userID
}

// paramID parses a numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// pageParams reads page/limit query parameters with defaults
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return page, limit
}

// failInternal logs the raw error and returns a generic 500 envelope. The
// raw message is only exposed in development mode.
func failInternal(c echo.Context, err error, msg string) error {
	logger.FromEcho(c).Error(msg, zap.Error(err))
	if devMode {
		return envelope.Fail(c, http.StatusInternalServerError, envelope.CodeInternal, msg+": "+err.Error())
	}
	return envelope.Fail(c, http.StatusInternalServerError, envelope.CodeInternal, "internal error")
}

// failLookup maps a fetch error to NotFound or Internal
func failLookup(c echo.Context, err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return envelope.Fail(c, http.StatusNotFound, envelope.CodeNotFound, what+" not found")
	}
	return failInternal(c, err, "failed to load "+what)
}
