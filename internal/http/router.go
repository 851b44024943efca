package http

import (
	"context"
	"time"

	"github.com/avanel/bookhub/internal/auth"
	"github.com/avanel/bookhub/internal/cache"
	"github.com/avanel/bookhub/internal/config"
	"github.com/avanel/bookhub/internal/http/handlers"
	"github.com/avanel/bookhub/internal/http/middlewares"
	"github.com/avanel/bookhub/internal/observability"
	"github.com/avanel/bookhub/internal/repo/postgres"
	"github.com/avanel/bookhub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Multipart overhead on top of the image size cap.
const maxRequestBytes = storage.MaxUploadBytes + (1 << 20)

func NewRouter(
	cfg config.Config,
	pool *pgxpool.Pool,
	jwtManager *auth.Manager,
	images *storage.FileStore,
	readCache *cache.Cache,
	prom *observability.Prom,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware())
	r.Use(middlewares.MaxBodyBytes(maxRequestBytes))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	r.Use(otelgin.Middleware("bookhub"))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// stored cover images, read-only
	r.Static("/images", images.Dir())

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	booksRepo := postgres.NewBooksRepo(pool, prom)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager)
	booksHandler := handlers.NewBooksHandler(booksRepo, images, readCache)

	authMW := middlewares.NewAuthMiddleware(jwtManager)

	api := r.Group("/api")

	// credential endpoints get a per-IP limiter
	limiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP), middlewares.RequireJSON())
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)

	books := api.Group("/books")
	books.GET("", booksHandler.ListBooks)
	books.GET("/bestrating", booksHandler.BestRating)
	books.GET("/:id", booksHandler.GetBook)

	protected := books.Group("")
	protected.Use(authMW.RequireAuth())
	protected.POST("", booksHandler.CreateBook)
	protected.PUT("/:id", booksHandler.UpdateBook)
	protected.DELETE("/:id", booksHandler.DeleteBook)
	protected.POST("/:id/rating", middlewares.RequireJSON(), booksHandler.RateBook)

	return r
}
