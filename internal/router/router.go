package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/handler"
	"github.com/fawe-tz/mne-api/internal/middleware"
	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	"github.com/fawe-tz/mne-api/pkg/logger"
	corsmiddleware "github.com/fawe-tz/mne-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fawe-tz/mne-api/pkg/middleware/requestid"
)

// Options carries everything the HTTP surface needs.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger

	Auth           middleware.TokenValidator
	AuditWriter    middleware.AuditWriter
	Metrics        *service.MetricsService
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	Import         *handler.ImportHandler
	Surveys        *handler.SurveyHandler
	Dashboard      *handler.DashboardHandler
	Violence       *handler.ViolenceReportHandler
	Reports        *handler.ReportHandler
	Indicators     *handler.IndicatorHandler
	MetricsHandler *handler.MetricsHandler
}

// New builds the gin engine with global middleware and every route group.
func New(opts Options) *gin.Engine {
	logr := opts.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	if opts.MetricsHandler != nil {
		r.GET("/health", opts.MetricsHandler.Health)
		r.GET("/ready", opts.MetricsHandler.Ready)
		r.GET("/metrics", opts.MetricsHandler.Prometheus)
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	authPublic := api.Group("/auth")
	authPublic.POST("/login", opts.AuthHandler.Login)
	authPublic.POST("/refresh", opts.AuthHandler.Refresh)

	// Signed download tokens authorize themselves.
	api.GET("/export/:token",
		middleware.Audit(opts.AuditWriter, logr, models.AuditActionReportDownload, "report_jobs"),
		opts.Reports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Auth))
	registerSecured(secured, opts, logr)

	return r
}

func registerSecured(rg *gin.RouterGroup, opts Options, logr *zap.Logger) {
	readers := middleware.RequireRoles(middleware.Readers...)
	writers := middleware.RequireRoles(middleware.Writers...)
	admins := middleware.RequireRoles(middleware.Admins...)

	rg.POST("/auth/logout", opts.AuthHandler.Logout)
	rg.GET("/auth/me", opts.AuthHandler.Me)

	imports := rg.Group("/imports", writers)
	imports.POST("", opts.Import.Upload)
	imports.GET("/template", opts.Import.Template)

	surveys := rg.Group("/surveys/:kind", readers)
	surveys.GET("", opts.Surveys.List)
	surveys.GET("/export",
		middleware.Audit(opts.AuditWriter, logr, models.AuditActionSurveyExport, "surveys"),
		opts.Surveys.Export)
	surveys.GET("/:id", opts.Surveys.Get)

	lookups := rg.Group("/lookups", readers)
	lookups.GET("/districts", opts.Surveys.Districts)
	lookups.GET("/schools", opts.Surveys.Schools)
	lookups.GET("/education-levels", opts.Surveys.EducationLevels)
	lookups.GET("/employment", opts.Surveys.Employment)

	rg.GET("/dashboard", readers, opts.Dashboard.Overview)
	analysis := rg.Group("/analysis", readers)
	analysis.GET("", opts.Dashboard.Analyze)
	analysis.GET("/trends", opts.Dashboard.Trends)

	reports := rg.Group("/reports", readers)
	reports.GET("/violence", opts.Violence.Report)
	reports.GET("/violence/summary", opts.Violence.Summary)
	reports.GET("/violence/export",
		middleware.Audit(opts.AuditWriter, logr, models.AuditActionViolenceExport, "reports"),
		opts.Violence.Export)
	reports.GET("/policy", opts.Violence.Policy)
	reports.GET("/policy/export",
		middleware.Audit(opts.AuditWriter, logr, models.AuditActionPolicyExport, "reports"),
		opts.Violence.PolicyExport)
	reports.POST("/generate", opts.Reports.Generate)
	reports.GET("/status/:id", opts.Reports.Status)

	indicators := rg.Group("/indicators")
	indicators.GET("", readers, opts.Indicators.List)
	indicators.GET("/rates", readers, opts.Violence.Rates)
	indicators.GET("/:id", readers, opts.Indicators.Get)
	indicators.GET("/:id/proof", readers, opts.Indicators.DownloadProof)
	indicators.POST("", writers, opts.Indicators.Create)
	indicators.PUT("/:id", writers, opts.Indicators.Update)
	indicators.DELETE("/:id", writers, opts.Indicators.Delete)
	indicators.POST("/:id/proof", writers, opts.Indicators.UploadProof)

	users := rg.Group("/users")
	users.GET("", admins, opts.UserHandler.List)
	users.POST("", admins, opts.UserHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfAccess), opts.UserHandler.Get)
	users.PUT("/:id", admins, opts.UserHandler.Update)
	users.DELETE("/:id", admins, opts.UserHandler.Delete)
}
