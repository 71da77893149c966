package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/handler"
	"github.com/noah-isme/curriculum-portal-api/internal/middleware"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	"github.com/noah-isme/curriculum-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/curriculum-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/curriculum-portal-api/pkg/middleware/requestid"
)

// Options configures the HTTP surface.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	CookieName     string
	EnableDocs     bool
}

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Records       *handler.RecordHandler
	Access        *handler.AccessHandler
	Feedback      *handler.FeedbackHandler
	AI            *handler.AIHandler
	Notifications *handler.NotificationHandler
	Metrics       *handler.MetricsHandler
}

// NewRouter builds the gin engine with the shared middleware stack and all
// routes under the API prefix.
func NewRouter(opts Options, h Handlers, tokens middleware.TokenValidator, metrics *service.MetricsService, log *zap.Logger) *gin.Engine {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", middleware.JWT(tokens, opts.CookieName), h.Auth.Me)
		auth.PATCH("/password", middleware.JWT(tokens, opts.CookieName), h.Users.ChangePassword)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens, opts.CookieName))

	users := secured.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdministrator))
	{
		users.GET("", h.Users.List)
		users.POST("", h.Users.Create)
		users.GET("/:id", h.Users.Get)
		users.PATCH("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}

	courses := secured.Group("/courses")
	{
		courses.GET("", h.Records.ListCourses)
		courses.POST("", middleware.RequireRoles(models.RoleAdministrator, models.RoleFaculty), h.Records.CreateCourse)
		courses.GET("/:commonId", h.Records.Get(models.RecordKindCourse))
		courses.GET("/:commonId/versions", h.Records.Versions(models.RecordKindCourse))
		courses.PATCH("/:commonId/update-by-user", h.Records.Propose(models.RecordKindCourse))
		courses.PATCH("/:commonId/accept-updates", h.Records.Accept(models.RecordKindCourse))
		courses.PATCH("/:commonId/reject-updates", h.Records.Reject(models.RecordKindCourse))
		courses.GET("/:commonId/subjects", h.Records.ListSubjects)
		courses.POST("/:commonId/subjects", h.Records.CreateSubject)
		courses.GET("/:commonId/users", h.Access.List)
		courses.POST("/:commonId/users", h.Access.Add)
		courses.DELETE("/:commonId/users/:userId", h.Access.Remove)
	}

	subjects := secured.Group("/subjects")
	{
		subjects.GET("/:commonId", h.Records.Get(models.RecordKindSubject))
		subjects.GET("/:commonId/versions", h.Records.Versions(models.RecordKindSubject))
		subjects.PATCH("/:commonId/update-by-user", h.Records.Propose(models.RecordKindSubject))
		subjects.PATCH("/:commonId/accept-updates", h.Records.Accept(models.RecordKindSubject))
		subjects.PATCH("/:commonId/reject-updates", h.Records.Reject(models.RecordKindSubject))
	}

	feedback := secured.Group("/feedback")
	{
		feedback.GET("/form", h.Feedback.Form)
		feedback.POST("/form", h.Feedback.Submit)
		feedback.GET("/analysis/:commonId", h.Feedback.Analysis)
		feedback.GET("/analysis/:commonId/export", h.Feedback.Export)
	}

	ai := secured.Group("/ai")
	{
		ai.POST("/chat", h.AI.Chat)
		ai.POST("/compare", h.AI.Compare)
		ai.POST("/analyze-feedback", h.AI.AnalyzeFeedback)
	}

	notifications := secured.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.PATCH("/:id/read", h.Notifications.MarkRead)
	}

	return r
}
