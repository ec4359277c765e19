package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/logger"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /schedule", s.serialized(s.handleListSchedules))
	mux.Handle("GET /logs/{name}", s.serialized(s.handleLogs))
	mux.Handle("POST /schedule/{name}", s.serialized(s.handleSetSchedule))
	mux.Handle("POST /schedule/{$}", s.serialized(s.handleMissingName))
	mux.Handle("DELETE /schedule/{name}", s.serialized(s.handleRemoveSchedule))
	mux.Handle("DELETE /schedule/{$}", s.serialized(s.handleMissingName))
	mux.Handle("POST /{name}", s.serialized(s.handleInvoke))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusNotFound, MsgNotFound)
	})

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.recoverPanics(h)
	h = s.observe(h)
	return h
}

// handlerFunc is a handler that reports failures as *Error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) *Error

func (s *Server) fail(w http.ResponseWriter, r *http.Request, e *Error) {
	fields := []logger.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
		{Key: "status", Value: e.Code},
	}
	if e.Code >= http.StatusInternalServerError {
		s.logger.ErrorCtx(r.Context(), "request failed", e.Err, fields...)
	} else {
		fields = append(fields, logger.Field{Key: "reason", Value: e.Error()})
		s.logger.Debug("request rejected", fields...)
	}
	writeText(w, e.Code, e.Message)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) *Error {
	name := r.PathValue("name")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return newError(http.StatusBadRequest, MsgPayloadUnreadable, err)
	}

	result, err := s.deps.Functions.Execute(name, payload)
	if err != nil {
		return invokeError(err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Exit-Code", strconv.Itoa(result.ExitCode))
	w.Header().Set("X-Invocation-Id", result.InvocationID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Output)
	return nil
}

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) *Error {
	schedules, err := s.deps.Schedules.All()
	if err != nil {
		return newError(http.StatusInternalServerError, MsgScheduleUnavailable, err)
	}

	data, err := json.Marshal(schedules)
	if err != nil {
		return newError(http.StatusInternalServerError, MsgInternal, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) *Error {
	name := r.PathValue("name")
	if err := functions.ValidateName(name); err != nil {
		return logsError(err)
	}

	data, err := s.deps.Logs.Read(name)
	if err != nil {
		return logsError(err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) *Error {
	name := r.PathValue("name")

	path, err := s.deps.Functions.Lookup(name)
	if err != nil {
		return scheduleError(err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return newError(http.StatusBadRequest, MsgPayloadUnreadable, err)
	}

	// Перезапись таблицы не должна обрываться при отключении клиента.
	ctx := context.WithoutCancel(r.Context())
	if err := s.deps.Scheduler.Upsert(ctx, name, string(body), s.deps.Command(name, path)); err != nil {
		return scheduleError(err)
	}

	writeText(w, http.StatusOK, MsgScheduleSet)
	return nil
}

func (s *Server) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) *Error {
	name := r.PathValue("name")

	ctx := context.WithoutCancel(r.Context())
	if err := s.deps.Scheduler.Remove(ctx, name); err != nil {
		return removeError(err)
	}

	writeText(w, http.StatusOK, MsgScheduleRemoved)
	return nil
}

func (s *Server) handleMissingName(_ http.ResponseWriter, _ *http.Request) *Error {
	return newError(http.StatusBadRequest, MsgMissingName, nil)
}
