// Package ai - клиент чат-модели: дневной план по списку задач и многоходовый чат.
//
// Провайдер должен поддерживать OpenAI-совместимый chat completions API
// (по умолчанию Groq). Без ключа клиент работает в выключенном режиме и
// на любой вызов отвечает UnavailableError, не обращаясь к сети.
package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"task-planner/internal/tasks"
)

const (
	DefaultModel   = "llama-3.1-8b-instant"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultTimeout = 60 * time.Second

	tracerName = "task-planner/ai"
)

// Options - внешняя конфигурация клиента.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// CredentialErr - почему ключ не удалось прочитать; попадает в Status.Reason.
	CredentialErr error
	// HTTPClient подменяет транспорт (тесты, прокси).
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Status - диагностируемое состояние клиента.
type Status struct {
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Client оборачивает llms.Model. Состояния между вызовами не хранит.
type Client struct {
	llm    llms.Model
	opts   Options
	status Status
	log    *log.Logger
}

// New собирает клиент поверх langchaingo/openai. Ошибки конфигурации не фатальны:
// клиент просто остаётся выключенным с причиной в Status.
func New(opts Options, logger *log.Logger) *Client {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Client{opts: opts, log: logger}

	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		reason := "no API credential configured"
		if opts.CredentialErr != nil {
			reason = "credential unavailable: " + opts.CredentialErr.Error()
		}
		return c.disable(reason)
	}

	llmOpts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(opts.Model),
	}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		llmOpts = append(llmOpts, openai.WithHTTPClient(opts.HTTPClient))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return c.disable("client init failed: " + err.Error())
	}

	c.llm = llm
	c.status = Status{Available: true, Model: opts.Model}
	return c
}

// NewWithModel собирает включённый клиент поверх готовой модели.
func NewWithModel(llm llms.Model, opts Options, logger *log.Logger) *Client {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Client{llm: llm, opts: opts, log: logger}
	if llm == nil {
		return c.disable("no model configured")
	}
	c.status = Status{Available: true, Model: opts.Model}
	return c
}

func (c *Client) disable(reason string) *Client {
	c.llm = nil
	c.status = Status{Available: false, Model: c.opts.Model, Reason: reason}
	c.log.WithField("reason", reason).Warn("AI features disabled")
	return c
}

// Status возвращает текущее состояние клиента.
func (c *Client) Status() Status { return c.status }

// Available - короткая форма Status().Available.
func (c *Client) Available() bool { return c.status.Available }

// GeneratePlan просит модель составить дневной план по задачам и возвращает текст ответа как есть.
// Пустой список задач тоже отправляется.
func (c *Client) GeneratePlan(ctx context.Context, list []tasks.Task) (string, error) {
	const op = "generate plan"
	if !c.Available() {
		return "", &UnavailableError{Reason: c.status.Reason}
	}

	prompt, err := planPrompt(list)
	if err != nil {
		return "", &RequestError{Op: op, Err: err}
	}
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: plannerPersona},
		{Role: RoleUser, Content: prompt},
	}

	ctx, span := c.startSpan(ctx, "ai.GeneratePlan", attribute.Int("planner.tasks", len(list)))
	defer span.End()

	text, err := c.complete(ctx, op, msgs)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	return text, nil
}

// Chat дописывает text в транскрипт, отправляет его целиком и возвращает
// новый транскрипт с ответом ассистента и сам ответ.
//
// history не меняется никогда: при ошибке вызывающий просто сохраняет старый транскрипт,
// и пользовательская реплика откатывается.
func (c *Client) Chat(ctx context.Context, history []ChatMessage, text string) ([]ChatMessage, string, error) {
	const op = "chat"
	if !c.Available() {
		return nil, "", &UnavailableError{Reason: c.status.Reason}
	}

	next := make([]ChatMessage, len(history), len(history)+2)
	copy(next, history)
	next = append(next, ChatMessage{Role: RoleUser, Content: text})

	ctx, span := c.startSpan(ctx, "ai.Chat", attribute.Int("chat.turns", len(next)))
	defer span.End()

	reply, err := c.complete(ctx, op, next)
	if err != nil {
		recordSpanError(span, err)
		return nil, "", err
	}
	next = append(next, ChatMessage{Role: RoleAssistant, Content: reply})
	return next, reply, nil
}

func (c *Client) complete(ctx context.Context, op string, msgs []ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return "", &RequestError{Op: op, Err: err}
	}

	start := time.Now()
	entry := c.log.WithFields(log.Fields{"op": op, "model": c.opts.Model, "messages": len(msgs)})

	resp, err := c.llm.GenerateContent(ctx, toMessageContent(msgs))
	if err == nil && ctx.Err() != nil {
		// Ответ пришёл уже после отмены: считаем запрос неудавшимся.
		err = ctx.Err()
	}
	if err != nil {
		entry.WithError(err).WithField("elapsed", time.Since(start)).Error("chat completion failed")
		return "", &RequestError{Op: op, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		entry.Error("chat completion returned no choices")
		return "", &RequestError{Op: op, Err: ErrEmptyResponse}
	}

	entry.WithField("elapsed", time.Since(start)).Debug("chat completion done")
	return resp.Choices[0].Content, nil
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("ai.model", c.opts.Model))
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
