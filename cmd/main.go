package main

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suteetoe/testtrack/internal/handler"
	mid "github.com/suteetoe/testtrack/internal/middleware"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/blobstore"
	"github.com/suteetoe/testtrack/pkg/config"
	"github.com/suteetoe/testtrack/pkg/database"
	"github.com/suteetoe/testtrack/pkg/jwtutil"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/pkg/mailer"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
)

func main() {
	appConfig, err := config.Load("testtrack")
	if err != nil {
		// Can't use the structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting testtrack", appConfig.LogFields()...)

	jwtutil.Initialize(&jwtutil.Config{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})
	log.Info("JWT utility initialized")

	prometheus.InitMetrics(appConfig.Metrics.Prefix)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	db, err := database.InitDB(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := store.RegisterAuditCallback(db); err != nil {
		log.Fatal("Failed to register audit callback", zap.Error(err))
	}

	if err := database.MigrateModels(model.AllModels()...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database migrations completed")

	var images blobstore.Store = blobstore.NewFSStore(appConfig.Blob.BasePath, log)
	handler.Init(mailer.New(&appConfig.Mail, log), images, appConfig.IsDevelopment())

	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	registerRoutes(e, log)

	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}

func registerRoutes(e *echo.Echo, log *zap.Logger) {
	adminOnly := mid.AdminOnly()
	testerOrAdmin := mid.TesterOrAdmin()
	superAdminOnly := mid.SuperAdminOnly()
	authenticated := mid.AuthenticatedOnly()

	if err := mid.ValidatePolicies(adminOnly, testerOrAdmin, superAdminOnly, authenticated); err != nil {
		log.Fatal("Route policy table is invalid", zap.Error(err))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", handler.Health)

	auth := e.Group("/api/v1/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/confirm-email", handler.ConfirmEmail)
	// Everything below operates on tenant rows: a valid token with a
	// TenantId claim is required before any policy applies.
	api := e.Group("/api/v1", mid.AuthMiddleware, mid.RequireTenantContext)

	api.GET("/me", handler.Me, authenticated.Middleware())

	users := api.Group("/users", adminOnly.Middleware())
	users.GET("", handler.ListUsers)
	users.POST("/invite", handler.InviteUser)
	users.PUT("/:id/role", handler.AssignRole)

	projects := api.Group("/projects")
	projects.GET("", handler.ListProjects, testerOrAdmin.Middleware())
	projects.GET("/:id", handler.GetProject, testerOrAdmin.Middleware())
	projects.GET("/:id/hierarchy", handler.GetProjectHierarchy, testerOrAdmin.Middleware())
	projects.POST("", handler.CreateProject, adminOnly.Middleware())
	projects.PUT("/:id", handler.UpdateProject, adminOnly.Middleware())
	projects.DELETE("/:id", handler.DeleteProject, adminOnly.Middleware())

	projects.GET("/:id/requirements", handler.ListRequirements, testerOrAdmin.Middleware())
	projects.GET("/:id/requirements/tree", handler.GetRequirementTree, testerOrAdmin.Middleware())
	projects.GET("/:id/suites", handler.ListTestSuites, testerOrAdmin.Middleware())
	projects.GET("/:id/suites/tree", handler.GetTestSuiteTree, testerOrAdmin.Middleware())
	projects.GET("/:id/folders", handler.ListTestFolders, testerOrAdmin.Middleware())
	projects.GET("/:id/runs", handler.ListTestRuns, testerOrAdmin.Middleware())
	projects.GET("/:id/reports/run-results", handler.GetRunResultsReport, testerOrAdmin.Middleware())

	requirements := api.Group("/requirements", testerOrAdmin.Middleware())
	requirements.POST("", handler.CreateRequirement)
	requirements.GET("/:id", handler.GetRequirement)
	requirements.PUT("/:id", handler.UpdateRequirement)
	requirements.DELETE("/:id", handler.DeleteRequirement)
	requirements.POST("/:id/testcases/:tcID", handler.LinkRequirementTestCase)
	requirements.DELETE("/:id/testcases/:tcID", handler.UnlinkRequirementTestCase)
	requirements.POST("/:id/testsuites/:tsID", handler.LinkRequirementTestSuite)
	requirements.DELETE("/:id/testsuites/:tsID", handler.UnlinkRequirementTestSuite)

	suites := api.Group("/suites", testerOrAdmin.Middleware())
	suites.POST("", handler.CreateTestSuite)
	suites.GET("/:id", handler.GetTestSuite)
	suites.PUT("/:id", handler.UpdateTestSuite)
	suites.DELETE("/:id", handler.DeleteTestSuite)
	suites.GET("/:id/cases", handler.ListTestCases)

	folders := api.Group("/folders", testerOrAdmin.Middleware())
	folders.POST("", handler.CreateTestFolder)
	folders.PUT("/:id", handler.UpdateTestFolder)
	folders.DELETE("/:id", handler.DeleteTestFolder)

	cases := api.Group("/cases", testerOrAdmin.Middleware())
	cases.POST("", handler.CreateTestCase)
	cases.GET("/:id", handler.GetTestCase)
	cases.PUT("/:id", handler.UpdateTestCase)
	cases.DELETE("/:id", handler.DeleteTestCase)

	runs := api.Group("/runs", testerOrAdmin.Middleware())
	runs.POST("", handler.CreateTestRun)
	runs.GET("/:id", handler.GetTestRun)
	runs.PUT("/:id", handler.UpdateTestRun)
	runs.DELETE("/:id", handler.DeleteTestRun)
	runs.POST("/:id/results", handler.CreateTestRunResult)
	runs.GET("/:id/results", handler.ListTestRunResults)

	results := api.Group("/results", testerOrAdmin.Middleware())
	results.PUT("/:id", handler.UpdateTestRunResult)
	results.DELETE("/:id", handler.DeleteTestRunResult)

	defects := api.Group("/defects", testerOrAdmin.Middleware())
	defects.POST("", handler.CreateDefect)
	defects.GET("", handler.ListDefects)
	defects.GET("/:id", handler.GetDefect)
	defects.GET("/:id/history", handler.GetDefectHistory)
	defects.PUT("/:id", handler.UpdateDefect)
	defects.DELETE("/:id", handler.DeleteDefect)

	audit := api.Group("/audit-logs", adminOnly.Middleware())
	audit.GET("", handler.ListAuditLogs)

	permissions := api.Group("/permissions", superAdminOnly.Middleware())
	permissions.POST("", handler.CreatePermission)
	permissions.GET("", handler.ListPermissions)
	permissions.PUT("/:id", handler.UpdatePermission)
	permissions.DELETE("/:id", handler.DeletePermission)

	roles := api.Group("/roles", superAdminOnly.Middleware())
	roles.POST("/:id/permissions/:pID", handler.LinkRolePermission)
	roles.DELETE("/:id/permissions/:pID", handler.UnlinkRolePermission)
}
