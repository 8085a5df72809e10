package feed

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
}

// NewRouter mounts the read API, health check and metrics endpoint.
func NewRouter(svc *Service, opts RouterOptions) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/latest", svc.handleLatest)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := model.KindResearch
	if v := q.Get("kind"); v != "" {
		k, err := model.ParseKind(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown kind")
			return
		}
		kind = k
	}

	lang := model.LangJA
	if v := q.Get("lang"); v != "" {
		l, err := model.ParseLanguage(v, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown lang")
			return
		}
		lang = l
	}

	limit := DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	resp, err := s.Latest(r.Context(), kind, lang, limit)
	if err != nil {
		zap.L().Error("feed: latest query failed",
			zap.String("kind", string(kind)),
			zap.String("lang", string(lang)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("feed: write response", zap.Error(err))
	}
}
