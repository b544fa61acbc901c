package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/humanfolio/internal/container"
	"github.com/joshua-takyi/humanfolio/internal/handlers"
	"github.com/joshua-takyi/humanfolio/internal/middleware"
	"github.com/joshua-takyi/humanfolio/internal/models"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, models.ErrorResponse("route not found"))
	})

	auth := handlers.AuthOptions{
		Tokens:        container.Tokens,
		ReadyTimeout:  container.Config.ReadyTimeout,
		SecureCookies: container.Config.IsProduction(),
	}
	rec := container.Reconciler
	users := container.UserService
	projects := container.ProjectService

	// API version 1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", handlers.Health(rec))

		// public routes
		v1.POST("/signup", handlers.Signup(users, auth))
		v1.POST("/login", handlers.Login(users, auth))
		v1.POST("/logout", handlers.Logout(auth))

		v1.GET("/users/:id", handlers.GetUser(users))
		v1.GET("/users/:id/projects", handlers.ListUserProjects(users, projects))
		v1.GET("/projects", handlers.ListProjects(projects))
		v1.GET("/projects/:id", handlers.GetProject(projects))
		v1.GET("/stream/projects", handlers.StreamProjects(rec))
		v1.GET("/stream/users", handlers.StreamUsers(rec))
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(container.Tokens, container.Logger))

	userRoutes := protected.Group("/users")
	{
		userRoutes.PATCH("/:id", handlers.UpdateUser(users))
		userRoutes.POST("/:id/follow", handlers.ToggleFollow(users))
	}

	projectRoutes := protected.Group("/projects")
	{
		projectRoutes.POST("", handlers.CreateProject(users, projects))
		projectRoutes.PUT("/:id", handlers.UpdateProject(projects))
		projectRoutes.DELETE("/:id", handlers.DeleteProject(projects))
		projectRoutes.POST("/:id/stages/:phase/vote", handlers.VoteStage(projects))
		projectRoutes.POST("/:id/stages/:phase/evidence", handlers.AddEvidence(projects, container.ImageService))
	}

	protected.POST("/media/images", handlers.UploadImage(container.ImageService))
	protected.POST("/judge", handlers.JudgeText(container.JudgeService))

	return r
}
