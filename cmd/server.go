package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/interval-research/internal/config"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/store"
)

// userHeader carries the caller's user id. An auth proxy in front of the
// server is expected to set it.
const userHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

type ctxKey int

const userIDKey ctxKey = iota

type server struct {
	env *appEnv
}

// newRouter builds the HTTP API over env. gatherer backs /metrics and may
// be nil.
func newRouter(env *appEnv, gatherer prometheus.Gatherer, sc config.ServerConfig) http.Handler {
	s := &server{env: env}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", userHeader},
		MaxAge:         300,
	}))
	if sc.RateLimit > 0 {
		r.Use(newIPRateLimiter(rate.Limit(sc.RateLimit), sc.RateBurst).Handler)
	}

	r.Get("/health", s.health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/research", s.research)
	r.Get("/logs", s.listLogs)

	r.Group(func(ur chi.Router) {
		ur.Use(requireUser)

		ur.Route("/cars/{carID}", func(cr chi.Router) {
			cr.Post("/research", s.researchCar)
			cr.Get("/intervals", s.listIntervals)
			cr.Post("/intervals", s.upsertInterval)
			cr.Post("/intervals/bulk", s.bulkUpsert)
		})
		ur.Delete("/intervals/{id}", s.deactivateInterval)
	})

	return r
}

// -- handlers --

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.env.Store.Ping(r.Context()); err != nil {
		zap.L().Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type vehicleRequest struct {
	Make       string `json:"make" validate:"required"`
	Model      string `json:"model"`
	Year       int    `json:"year" validate:"required"`
	EngineType string `json:"engine_type"`
}

func (req vehicleRequest) vehicle() (model.Vehicle, error) {
	et, err := model.ParseEngineType(req.EngineType)
	if err != nil {
		return model.Vehicle{}, err
	}
	v := model.Vehicle{Make: req.Make, Model: req.Model, Year: req.Year, EngineType: et}.Normalized()
	if err := model.ValidateVehicle(v); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

func (s *server) research(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	v, err := req.vehicle()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := parseUserHeader(r)

	out, err := runResearch(r.Context(), s.env, v, userID, 0, false)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) researchCar(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "carID")
	if !ok {
		return
	}
	var req vehicleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	v, err := req.vehicle()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	apply, _ := strconv.ParseBool(r.URL.Query().Get("apply"))

	out, err := runResearch(r.Context(), s.env, v, userID(r), carID, apply)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listIntervals(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "carID")
	if !ok {
		return
	}
	ivs, err := s.env.Store.ActiveIntervals(r.Context(), userID(r), carID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intervals": ivs})
}

func (s *server) upsertInterval(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "carID")
	if !ok {
		return
	}
	var c model.Candidate
	if !decodeBody(w, r, &c) {
		return
	}
	sum, err := applyCandidates(r.Context(), s.env, userID(r), carID, []model.Candidate{c})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	status := http.StatusOK
	if sum.Inserted > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, sum.Intervals[0])
}

type bulkRequest struct {
	Intervals []model.Candidate `json:"intervals" validate:"required,min=1,max=500"`
}

func (s *server) bulkUpsert(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "carID")
	if !ok {
		return
	}
	var req bulkRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	sum, err := applyCandidates(r.Context(), s.env, userID(r), carID, req.Intervals)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *server) deactivateInterval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.env.Store.DeactivateInterval(r.Context(), userID(r), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := logFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logs, err := s.env.Store.ListResearchLogs(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// logFilterFromQuery reads make, user_id, failed, since (RFC 3339 time or
// a duration such as 24h), limit and offset.
func logFilterFromQuery(r *http.Request) (store.LogFilter, error) {
	q := r.URL.Query()
	f := store.LogFilter{Make: q.Get("make")}

	ints := []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}}
	for _, p := range ints {
		if raw := q.Get(p.name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return f, eris.New("invalid " + p.name)
			}
			*p.dst = n
		}
	}
	if raw := q.Get("user_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, eris.New("invalid user_id")
		}
		f.UserID = n
	}
	if raw := q.Get("failed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, eris.New("invalid failed")
		}
		f.OnlyFailed = b
	}
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.Since = t
		} else if d, err := time.ParseDuration(raw); err == nil {
			f.Since = time.Now().Add(-d)
		} else {
			return f, eris.New("invalid since")
		}
	}
	return f, nil
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps domain errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCandidate), errors.Is(err, model.ErrInvalidVehicle):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes the JSON request body into dst. It writes a 400 and
// returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeRequest is decodeBody plus struct tag validation of dst.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeBody(w, r, dst) {
		return false
	}
	if err := model.Validator().Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseUserHeader(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

// requireUser rejects requests without a valid user header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserHeader(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, userHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(r rate.Limit, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{rate: r, burst: burst}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	lim, _ := l.limiters.LoadOrStore(ip, rate.NewLimiter(l.rate, l.burst))
	return lim.(*rate.Limiter)
}

// Handler rejects requests over the per-IP limit with 429.
func (l *ipRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.limiter(ip).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
