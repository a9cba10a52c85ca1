package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// AnalyticsWindow bounds the trailing window a report may cover.
type AnalyticsWindow struct {
	DefaultDays int
	MaxDays     int
}

// AnalyticsHandler serves click reports to link owners.
type AnalyticsHandler struct {
	links      *shortener.Service
	aggregator *analytics.Aggregator
	window     AnalyticsWindow
	now        func() time.Time
	logger     *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(
	links *shortener.Service,
	aggregator *analytics.Aggregator,
	window AnalyticsWindow,
	logger *zap.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		links:      links,
		aggregator: aggregator,
		window:     window,
		now:        time.Now,
		logger:     logger,
	}
}

func (h *AnalyticsHandler) Summary(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResponse, error) {
	link, days, err := h.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := h.aggregator.Summarize(ctx, link.ID, days)
	if err != nil {
		h.logger.Error("failed to summarize clicks", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error503ServiceUnavailable("analytics unavailable")
	}

	return &AnalyticsResponse{Body: report}, nil
}

func (h *AnalyticsHandler) Export(ctx context.Context, req *AnalyticsRequest) (*ExportResponse, error) {
	link, days, err := h.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	export, err := h.aggregator.Export(ctx, link.ID, days)
	if err != nil {
		h.logger.Error("failed to export clicks", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error503ServiceUnavailable("analytics unavailable")
	}

	resp := &ExportResponse{Body: export}
	resp.Headers.ContentDisposition = fmt.Sprintf("attachment; filename=analytics_%s_%s.json",
		link.Code, h.now().UTC().Format("20060102"))

	return resp, nil
}

// prepare checks ownership of the link and resolves the window in days.
func (h *AnalyticsHandler) prepare(ctx context.Context, req *AnalyticsRequest) (*shortener.Link, int, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, 0, err
	}

	days := req.Days
	if days == 0 {
		days = h.window.DefaultDays
	}

	if days < 1 || days > h.window.MaxDays {
		return nil, 0, huma.Error422UnprocessableEntity(
			fmt.Sprintf("days must be between 1 and %d", h.window.MaxDays),
			&huma.ErrorDetail{Location: "query.days", Value: req.Days},
		)
	}

	link, err := h.links.Get(ctx, owner, shortener.Code(req.Code))
	if err != nil {
		return nil, 0, httpError(err)
	}

	return link, days, nil
}
