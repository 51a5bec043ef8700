// Package api serves the aggregation engine over HTTP for the dashboard.
package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"podcast-search/pkg/aggregation"
	"podcast-search/pkg/binning"
	"podcast-search/pkg/db"
	"podcast-search/pkg/episodes"
	"podcast-search/pkg/ticker"
)

// Aggregator is the part of the aggregation engine the API serves.
type Aggregator interface {
	BuildHistogram(ctx context.Context, queries []aggregation.TermQuery, eid string, nBins int) (*aggregation.Histogram, error)
	BuildTicker(ctx context.Context, eid string, width float64) (*aggregation.Timeline, error)
	TermFrequencies(ctx context.Context, queries []aggregation.TermQuery) (*aggregation.FrequencyReport, error)
	DefaultBins() int
	DefaultEnvelopeWidth() float64
}

// Options configures the HTTP server.
type Options struct {
	AllowOrigins string
	Logger       *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	app    *fiber.App
	agg    Aggregator
	logger *slog.Logger
}

// NewServer creates the fiber app and registers the routes.
func NewServer(agg Aggregator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "podcast-search",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	s := &Server{app: app, agg: agg, logger: opts.Logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	app.Get("/episodes/:eid/ticker", s.handleTicker)
	app.Get("/episodes/:eid/ticker/window", s.handleWindow)
	app.Post("/episodes/:eid/histogram", s.handleHistogram)
	app.Post("/frequencies", s.handleFrequencies)

	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("api listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// HistogramRequest is the body of POST /episodes/:eid/histogram.
type HistogramRequest struct {
	Queries []aggregation.TermQuery `json:"queries"`
	// Bins overrides the default resolution when positive.
	Bins int `json:"bins"`
}

// FrequencyRequest is the body of POST /frequencies.
type FrequencyRequest struct {
	Queries []aggregation.TermQuery `json:"queries"`
}

// WindowResponse lists the appearances visible around a playback time.
type WindowResponse struct {
	EID     string           `json:"eid"`
	Time    float64          `json:"time"`
	Width   float64          `json:"width"`
	Visible []ticker.Visible `json:"visible"`
}

func (s *Server) handleTicker(c *fiber.Ctx) error {
	width, err := s.widthParam(c)
	if err != nil {
		return badRequest(c, "width must be a number", "ERR_INVALID_WIDTH")
	}

	tl, err := s.agg.BuildTicker(c.UserContext(), c.Params("eid"), width)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(tl)
}

func (s *Server) handleWindow(c *fiber.Ctx) error {
	width, err := s.widthParam(c)
	if err != nil {
		return badRequest(c, "width must be a number", "ERR_INVALID_WIDTH")
	}
	t, err := strconv.ParseFloat(c.Query("t"), 64)
	if err != nil {
		return badRequest(c, "t must be a number", "ERR_INVALID_TIME")
	}
	span := c.QueryFloat("span", width)

	tl, err := s.agg.BuildTicker(c.UserContext(), c.Params("eid"), width)
	if err != nil {
		return s.fail(c, err)
	}
	visible := tl.Window(t, span)
	if visible == nil {
		visible = []ticker.Visible{}
	}
	return c.JSON(WindowResponse{
		EID:     tl.EID,
		Time:    t,
		Width:   span,
		Visible: visible,
	})
}

func (s *Server) handleHistogram(c *fiber.Ctx) error {
	var req HistogramRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", "ERR_INVALID_BODY")
	}
	bins := req.Bins
	if bins == 0 {
		bins = s.agg.DefaultBins()
	}

	h, err := s.agg.BuildHistogram(c.UserContext(), req.Queries, c.Params("eid"), bins)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(h)
}

func (s *Server) handleFrequencies(c *fiber.Ctx) error {
	var req FrequencyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", "ERR_INVALID_BODY")
	}

	report, err := s.agg.TermFrequencies(c.UserContext(), req.Queries)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(report)
}

func (s *Server) widthParam(c *fiber.Ctx) (float64, error) {
	raw := c.Query("width")
	if raw == "" {
		return s.agg.DefaultEnvelopeWidth(), nil
	}
	return strconv.ParseFloat(raw, 64)
}

func badRequest(c *fiber.Ctx, msg, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// fail maps engine errors to HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "ERR_INTERNAL"

	switch {
	case errors.Is(err, db.ErrEpisodeNotFound), errors.Is(err, episodes.ErrEpisodeNotFound):
		status, code = fiber.StatusNotFound, "ERR_EPISODE_NOT_FOUND"
	case errors.Is(err, db.ErrUnknownDuration), errors.Is(err, episodes.ErrUnknownDuration):
		status, code = fiber.StatusUnprocessableEntity, "ERR_UNKNOWN_DURATION"
	case errors.Is(err, binning.ErrInvalidSpan):
		// corrupt stored chunk; stays internal
	case errors.Is(err, binning.ErrInvalidBinCount), errors.Is(err, binning.ErrInvalidDuration),
		errors.Is(err, ticker.ErrInvalidWidth):
		status, code = fiber.StatusBadRequest, "ERR_INVALID_ARGUMENT"
	case errors.Is(err, aggregation.ErrNoSource):
		status, code = fiber.StatusNotImplemented, "ERR_NOT_CONFIGURED"
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
