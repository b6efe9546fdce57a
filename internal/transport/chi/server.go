package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/logger"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
	healthuc "github.com/devindrajit1998/ai-novaintel/internal/usecase/health"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
)

const maxBodyBytes = 8 << 20

// Optimizer is the pipeline the handlers drive.
type Optimizer interface {
	Optimize(ctx context.Context, req *optimizer.Request) (*optimizer.Response, error)
	ExpandQuery(ctx context.Context, query string, maxExpansions *int) ([]domain.QueryVariant, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the retrieval API over chi.
type Server struct {
	optimizer     Optimizer
	embedder      domain.Embedder
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. embedder may be nil, which disables /v1/embeddings.
func NewServer(opt Optimizer, embedder domain.Embedder, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		optimizer: opt,
		embedder:  embedder,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, codeInvalidArgument),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusServiceUnavailable, codeProviderUnavailable),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrProviderContractViolation, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes builds the router with the full middleware stack.
func (s *Server) Routes(apiKeys []string) http.Handler {
	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chirouter.Router) {
		r.Post("/optimize", s.Optimize)
		r.Post("/expand", s.Expand)
		r.Post("/embeddings", s.Embeddings)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

// Optimize handles POST /v1/optimize.
func (s *Server) Optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.optimizer.Optimize(ctx, req.ToDomain())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, NewOptimizeResponse(resp))
}

// Expand handles POST /v1/expand.
func (s *Server) Expand(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if !s.decode(w, r, &req) {
		return
	}

	variants, err := s.optimizer.ExpandQuery(r.Context(), req.Query, req.MaxExpansions)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ExpandResponse{Variants: variantsFromDomain(variants)})
}

// Embeddings handles POST /v1/embeddings through the cached provider chain.
func (s *Server) Embeddings(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "input must not be empty")
		return
	}
	if !domain.IsAvailable(s.embedder) {
		s.handleDomainError(w, r, fmt.Errorf("embeddings: %w", domain.ErrProviderUnavailable))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := domain.BatchOf(ctx, s.embedder, req.Input)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	data := make([]EmbeddingDTO, len(res.Embeddings))
	for i, v := range res.Embeddings {
		data[i] = EmbeddingDTO{Index: i, Embedding: v}
	}
	tokens, _ := usage.Snapshot()
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, EmbeddingsResponse{Data: data, TotalTokens: tokens})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage exposes validation details and hides everything else behind the sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrProviderUnavailable,
		domain.ErrProviderError,
		domain.ErrProviderContractViolation,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
