package container

import (
	"fmt"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/joshua-takyi/humanfolio/internal/config"
	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/judge"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
	"github.com/joshua-takyi/humanfolio/internal/services"
	"github.com/joshua-takyi/humanfolio/internal/session"
)

// Deps are the already connected collaborators. Only Store is required.
type Deps struct {
	Store      models.Store
	Session    reconciler.SessionStore
	Cloudinary *cloudinary.Cloudinary
	GenAI      *genai.Client
}

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config

	Store      models.Store
	Reconciler *reconciler.Reconciler
	Tokens     *helpers.TokenIssuer

	UserService    *services.UserService
	ProjectService *services.ProjectService
	ImageService   *services.ImageService
	JudgeService   *services.JudgeService
}

// NewContainer creates a new dependency injection container. The reconciler
// is built but not started.
func NewContainer(logger *slog.Logger, cfg *config.Config, deps Deps) (*Container, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("a document store is required")
	}
	if deps.Session == nil {
		deps.Session = session.NewMemoryStore()
	}

	rec := reconciler.New(deps.Store, reconciler.Options{
		Logger:       logger,
		Session:      deps.Session,
		WriteTimeout: cfg.WriteTimeout,
	})

	imageOpts := helpers.ImageOptions{
		MaxEdge:  cfg.ImageMaxEdge,
		Quality:  cfg.ImageQuality,
		MaxBytes: cfg.ImageMaxBytes,
	}
	var images helpers.ImageStore = helpers.InlineStore{Options: imageOpts}
	if deps.Cloudinary != nil {
		images = helpers.NewCloudinaryStore(deps.Cloudinary, imageOpts)
	}

	var analyzer judge.Analyzer = judge.StubAnalyzer{}
	if deps.GenAI != nil {
		a, err := judge.NewGenAIAnalyzer(deps.GenAI, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		analyzer = a
	}

	return &Container{
		Logger:         logger,
		Config:         cfg,
		Store:          deps.Store,
		Reconciler:     rec,
		Tokens:         helpers.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		UserService:    services.NewUserService(rec),
		ProjectService: services.NewProjectService(rec, images),
		ImageService:   services.NewImageService(images, 0),
		JudgeService:   services.NewJudgeService(analyzer),
	}, nil
}

// OpenSession builds the session store the configuration names.
func OpenSession(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (reconciler.SessionStore, error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		return session.NewMemoryStore(), nil
	case config.SessionRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis session backend needs a redis client")
		}
		return session.NewRedisStore(rdb, logger), nil
	case config.SessionFile, "":
		return session.NewFileStore(cfg.SessionPath, logger)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
