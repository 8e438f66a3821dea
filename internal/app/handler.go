package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"task-planner/internal/ai"
	appMiddleware "task-planner/internal/middleware"
	"task-planner/internal/tasks"
)

const maxBodySize = 64 * 1024

// Handler - HTTP слой.
//
// Здесь лежит всё, что относится к HTTP:
// роуты, парсинг JSON, коды ответов, middleware. Логика живёт в App.
type Handler struct {
	app            *App
	log            *log.Logger
	requestTimeout time.Duration
}

// NewHandler создаёт Handler. requestTimeout применяется к роутам задач;
// AI-роуты ограничены таймаутом самого AI-клиента.
func NewHandler(app *App, logger *log.Logger, requestTimeout time.Duration) *Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Handler{app: app, log: logger, requestTimeout: requestTimeout}
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type planResponse struct {
	Plan string `json:"plan"`
}

// Router собирает HTTP-роутер.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appMiddleware.JSONHeaderMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequestTimeoutMiddleware(h.requestTimeout))

			r.Get("/tasks", h.listTasks)
			r.Post("/tasks", h.createTask)
			r.Get("/tasks/{id}", h.getTask)
			r.Delete("/tasks/{id}", h.deleteTask)
			r.Get("/alerts", h.listAlerts)
			r.Get("/chat/{sessionID}", h.getTranscript)
			r.Get("/ai/status", h.aiStatus)
		})

		r.Post("/plan", h.requestPlan)
		r.Post("/chat", h.sendChat)
	})
	return r
}

// listTasks обрабатывает GET /api/v1/tasks, задачи уже отсортированы.
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.ListRanked(r.Context(), storeParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// createTask обрабатывает POST /api/v1/tasks
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	created, err := h.app.AddTask(r.Context(), storeParam(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.app.GetTask(r.Context(), storeParam(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// deleteTask обрабатывает DELETE /api/v1/tasks/{id}, удаление только по ID.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteTask(r.Context(), storeParam(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listAlerts обрабатывает GET /api/v1/alerts?window=N
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	window := -1
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid window. Use a non-negative number of days", http.StatusBadRequest)
			return
		}
		window = n
	}

	alerts, err := h.app.ListAlerts(r.Context(), storeParam(r), window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) requestPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.app.RequestPlan(r.Context(), storeParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, planResponse{Plan: plan})
}

// sendChat обрабатывает POST /api/v1/chat.
//
// ?store= выбирает хранилище для новой сессии. Существующая сессия остаётся на своём
// хранилище: без ?store= она просто продолжается, с другим именем ответ 409.
func (h *Handler) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	res, err := h.app.SendChat(r.Context(), storeParam(r), req.SessionID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := h.app.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) aiStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.app.AIStatus())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := sonic.ConfigStd.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("encode response")
	}
}

// writeError переводит ошибки слоёв ниже в HTTP-коды.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr  *tasks.ValidationError
		unavailableErr *ai.UnavailableError
		requestErr     *ai.RequestError
	)

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tasks.ErrTaskNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, tasks.ErrUnknownStore):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Chat session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionStore):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &unavailableErr):
		http.Error(w, unavailableErr.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &requestErr):
		h.log.WithError(err).WithField("path", r.URL.Path).Warn("ai request failed")
		if errors.Is(err, context.Canceled) {
			return
		}
		http.Error(w, requestErr.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		// Клиент ушёл или сервер останавливается: ответ читать некому.
		h.log.WithField("path", r.URL.Path).Debug("request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func storeParam(r *http.Request) string {
	return r.URL.Query().Get("store")
}

func decodeBody(r *http.Request, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
