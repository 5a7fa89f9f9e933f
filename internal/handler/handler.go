package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"indexflow-go/internal/service"
	"indexflow-go/pkg/logger"
	"indexflow-go/pkg/ratelimit"
)

// Trigger is the orchestrator surface the HTTP layer needs.
type Trigger interface {
	Run(ctx context.Context) (*service.Summary, error)
	PushURLs(ctx context.Context, urls []string) error
}

type Config struct {
	BaseURL           string
	IndexNowKey       string
	RequestsPerMinute int
}

// Handler exposes the indexing trigger and push endpoints. The trigger
// always answers 200 with a structured payload: callers inspect the JSON,
// not the status code, for partial outcomes. Only malformed push requests
// get a 400.
type Handler struct {
	trigger Trigger
	config  Config
	limiter *ratelimit.KeyedLimiter
	log     *logger.Logger
}

func New(trigger Trigger, config Config) *Handler {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Handler{
		trigger: trigger,
		config:  config,
		limiter: ratelimit.NewKeyedLimiter(config.RequestsPerMinute, time.Minute),
		log:     logger.GetLogger().WithField("component", "handler"),
	}
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/api/indexing", h.rateLimited, h.handleIndexing)
	app.Post("/api/indexing", h.rateLimited, h.handleIndexing)
	app.Post("/api/indexnow", h.handlePush)
	app.Get("/healthz", h.handleHealth)

	if h.config.IndexNowKey != "" {
		// IndexNow ownership proof: the key published at a well-known path.
		app.Get("/"+h.config.IndexNowKey+".txt", h.handleKeyFile)
	}
}

func (h *Handler) rateLimited(c *fiber.Ctx) error {
	if !h.limiter.Allow(c.IP()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"error":   "too many requests",
		})
	}
	return c.Next()
}

// handleIndexing runs the full submission cycle, invoked by the scheduler
// or manually.
func (h *Handler) handleIndexing(c *fiber.Ctx) error {
	h.log.WithField("ip", c.IP()).Info("Indexing run triggered")

	summary, err := h.trigger.Run(c.Context())
	if err != nil {
		// The summary already carries the error; partial failure is not an
		// HTTP error.
		h.log.WithError(err).Warn("Indexing run finished with errors")
	}
	if summary == nil {
		summary = &service.Summary{Success: false, Message: "internal error"}
		if err != nil {
			summary.Error = err.Error()
		}
	}
	return c.JSON(summary)
}

type pushRequest struct {
	URLs []string `json:"urls"`
}

// handlePush proxies a URL list to the multi-URL push API after validating
// that every entry belongs to the configured site.
func (h *Handler) handlePush(c *fiber.Ctx) error {
	var req pushRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: urls must be an array of strings")
	}
	if len(req.URLs) == 0 {
		return badRequest(c, "invalid or empty urls array")
	}
	for _, u := range req.URLs {
		if !strings.HasPrefix(u, h.config.BaseURL+"/") && u != h.config.BaseURL {
			return badRequest(c, fmt.Sprintf("URL not under %s: %s", h.config.BaseURL, u))
		}
	}

	if err := h.trigger.PushURLs(c.Context(), req.URLs); err != nil {
		h.log.WithError(err).Error("Push submission failed")
		return c.JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "URLs submitted successfully",
		"submittedUrls": req.URLs,
	})
}

func (h *Handler) handleKeyFile(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(h.config.IndexNowKey)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
