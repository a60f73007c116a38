package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/report"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/prometheus"
)

// GetRunResultsReport builds the run-outcome report for a project. The
// default response is the JSON result set; format=csv streams CSV instead.
// A columns param narrows the column set.
func GetRunResultsReport(c echo.Context) error {
	prometheus.RecordEntityOperation("report", "run_results")
	db, tenantID, _ := tenantDB(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, projectID).Error; err != nil {
		return failLookup(c, err, "project")
	}

	columns := report.ParseColumns(c.QueryParam("columns"))

	defer prometheus.TrackDBOperation("query")(time.Now())
	rs, err := report.BuildRunResults(db, tenantID, projectID, columns)
	if err != nil {
		if errors.Is(err, report.ErrUnknownColumn) {
			return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, err.Error())
		}
		return failInternal(c, err, "failed to build report")
	}

	if c.QueryParam("format") == "csv" {
		renderer := report.CSVRenderer{}
		c.Response().Header().Set(echo.HeaderContentType, renderer.ContentType())
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="run-results.csv"`)
		c.Response().WriteHeader(http.StatusOK)
		return renderer.Render(c.Response(), rs)
	}
	return envelope.OK(c, http.StatusOK, rs)
}
