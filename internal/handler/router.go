package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/deskbot/internal/invalidation"
	"github.com/hitoshi/deskbot/internal/metrics"
	"github.com/hitoshi/deskbot/internal/middleware"
	"github.com/hitoshi/deskbot/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
)

// 入力の上限
const (
	maxFullNameLen    = 255
	maxAccountTypeLen = 64
	maxIDLen          = 64
	maxBulkDeleteIDs  = 100
)

// userInputSchema はユーザー作成・更新リクエストのボディスキーマ。
var userInputSchema = validation.Schema{
	Fields: []validation.Field{
		{Name: "fullName", Kind: validation.String, Required: true, MaxLen: maxFullNameLen},
		{Name: "accountType", Kind: validation.String, Required: true, MaxLen: maxAccountTypeLen},
	},
}

// bulkDeleteSchema は一括削除リクエストのボディスキーマ。
var bulkDeleteSchema = validation.Schema{
	Fields: []validation.Field{
		{Name: "ids", Kind: validation.StringArray, Required: true, MaxLen: maxIDLen, MaxItems: maxBulkDeleteIDs},
	},
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker HealthChecker
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer

	// ユーザー
	UserService UserServiceInterface
	Publisher   invalidation.Publisher
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	  /users: Auth → RateLimit(General) → [RateLimit(Mutation) → BodyValidator]
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	var collector metrics.MetricsCollector
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		collector = deps.Metrics
	}

	userHandler := NewUserHandler(deps.UserService, deps.Publisher, collector)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		mutation := deps.RateLimiter.MutationMiddleware()
		withUserInput := chi.Chain(mutation, middleware.NewBodyValidator(userInputSchema))

		r.Get("/", userHandler.List)
		r.With(withUserInput...).Post("/", userHandler.Create)
		r.With(mutation, middleware.NewBodyValidator(bulkDeleteSchema)).Post("/bulk-delete", userHandler.BulkDelete)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.With(withUserInput...).Patch("/", userHandler.Update)
			r.With(mutation).Delete("/", userHandler.Delete)
		})
	})

	return r
}
