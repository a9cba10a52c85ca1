package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// LinkHandler handles owner link management.
type LinkHandler struct {
	links   *shortener.Service
	baseURL string
	logger  *zap.Logger
}

// NewLinkHandler creates a new link handler. Short URLs are built on baseURL.
func NewLinkHandler(links *shortener.Service, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:   links,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (h *LinkHandler) Create(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.links.Create(ctx, owner, createInput(req.Body))
	if err != nil {
		return nil, h.fail("create link", owner, err)
	}

	h.logger.Info("link created",
		zap.String("owner", owner),
		zap.String("code", string(link.Code)),
	)

	resp := &CreateLinkResponse{Body: h.linkBody(link)}
	resp.Headers.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *LinkHandler) CreateBulk(ctx context.Context, req *BulkCreateRequest) (*BulkCreateResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]shortener.CreateInput, len(req.Body.Links))
	for i, body := range req.Body.Links {
		inputs[i] = createInput(body)
	}

	results, err := h.links.CreateBulk(ctx, owner, inputs)
	if err != nil {
		return nil, h.fail("bulk create links", owner, err)
	}

	resp := &BulkCreateResponse{}
	resp.Body.Results = make([]BulkItem, len(results))

	for i, result := range results {
		item := BulkItem{Index: i}

		if result.Err != nil {
			item.Error = bulkError(result.Err)
		} else {
			body := h.linkBody(result.Link)
			item.Link = &body
			resp.Body.Created++
		}

		resp.Body.Results[i] = item
	}

	h.logger.Info("links created in bulk",
		zap.String("owner", owner),
		zap.Int("requested", len(inputs)),
		zap.Int("created", resp.Body.Created),
	)

	return resp, nil
}

func (h *LinkHandler) List(ctx context.Context, req *ListLinksRequest) (*ListLinksResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	links, total, err := h.links.List(ctx, owner, shortener.Page{Number: req.Page, Size: req.Size})
	if err != nil {
		return nil, h.fail("list links", owner, err)
	}

	resp := &ListLinksResponse{}
	resp.Body.Page = req.Page
	resp.Body.Size = req.Size
	resp.Body.Total = total
	resp.Body.Links = make([]LinkBody, len(links))

	for i := range links {
		resp.Body.Links[i] = h.linkBody(&links[i])
	}

	return resp, nil
}

func (h *LinkHandler) Get(ctx context.Context, req *LinkRequest) (*LinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.links.Get(ctx, owner, shortener.Code(req.Code))
	if err != nil {
		return nil, h.fail("get link", owner, err)
	}

	return &LinkResponse{Body: h.linkBody(link)}, nil
}

func (h *LinkHandler) Update(ctx context.Context, req *UpdateLinkRequest) (*LinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.links.Update(ctx, owner, shortener.Code(req.Code), shortener.Update{
		Destination:     req.Body.Destination,
		ExpiresAt:       req.Body.ExpiresAt,
		ClearExpiresAt:  req.Body.ClearExpiresAt,
		ClickLimit:      req.Body.ClickLimit,
		ClearClickLimit: req.Body.ClearClickLimit,
	})
	if err != nil {
		return nil, h.fail("update link", owner, err)
	}

	return &LinkResponse{Body: h.linkBody(link)}, nil
}

func (h *LinkHandler) Delete(ctx context.Context, req *LinkRequest) (*struct{}, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.links.Delete(ctx, owner, shortener.Code(req.Code)); err != nil {
		return nil, h.fail("delete link", owner, err)
	}

	h.logger.Info("link deleted", zap.String("owner", owner), zap.String("code", req.Code))

	return &struct{}{}, nil
}

func (h *LinkHandler) linkBody(link *shortener.Link) LinkBody {
	return LinkBody{
		Code:        string(link.Code),
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.Code),
		Destination: link.Destination,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		ClickLimit:  link.ClickLimit,
		ClickCount:  link.ClickCount,
	}
}

// fail logs unexpected write-path failures and maps err for the client.
func (h *LinkHandler) fail(op, owner string, err error) error {
	mapped := httpError(err)

	var se huma.StatusError
	if errors.As(mapped, &se) && se.GetStatus() >= 500 {
		h.logger.Error("failed to "+op, zap.String("owner", owner), zap.Error(err))
	}

	return mapped
}

func createInput(body CreateLinkBody) shortener.CreateInput {
	return shortener.CreateInput{
		Destination: body.Destination,
		Alias:       body.Alias,
		ExpiresAt:   body.ExpiresAt,
		ClickLimit:  body.ClickLimit,
	}
}

func bulkError(err error) string {
	var se huma.StatusError
	if errors.As(httpError(err), &se) {
		return se.Error()
	}

	return err.Error()
}

func requireOwner(ctx context.Context) (string, error) {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("authentication required")
	}

	return owner, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shortener.ErrNotFound)
}
