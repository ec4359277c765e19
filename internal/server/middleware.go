package server

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/aatumaykin/pifaas/internal/logger"
)

// serialized adapts h and, when configured, lets only one such request run
// at a time. Health and metrics routes are not serialized.
func (s *Server) serialized(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Serialize {
			s.exclusive.Lock()
			defer s.exclusive.Unlock()
		}
		if e := h(w, r); e != nil {
			s.fail(w, r, e)
		}
	})
}

// rateLimit rejects requests above the configured rate with 429. A zero
// rate disables the limiter.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.cfg.RateLimit <= 0 {
		return next
	}

	burst := s.cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			s.logger.Warn("request rate limited",
				logger.Field{Key: "method", Value: r.Method},
				logger.Field{Key: "path", Value: r.URL.Path})
			writeText(w, http.StatusTooManyRequests, MsgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics keeps a failing request from taking down the process.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic", fmt.Errorf("%v", rec),
					logger.Field{Key: "method", Value: r.Method},
					logger.Field{Key: "path", Value: r.URL.Path})
				writeText(w, http.StatusInternalServerError, MsgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// observe logs every request and feeds the recorder.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.deps.Recorder != nil {
			s.deps.Recorder.RecordHTTPRequest(route, sw.code)
		}
		s.logger.Debug("request handled",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path},
			logger.Field{Key: "route", Value: route},
			logger.Field{Key: "status", Value: sw.code},
			logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
