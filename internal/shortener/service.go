package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CacheInvalidator drops cached resolutions for a code.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// CreateInput describes a link to create. An empty Alias means a generated code.
type CreateInput struct {
	Destination string
	Alias       string
	ExpiresAt   *time.Time
	ClickLimit  *int64
}

// BulkResult is the outcome of one item of a bulk create.
type BulkResult struct {
	Link *Link
	Err  error
}

// ServiceConfig bounds owner activity.
type ServiceConfig struct {
	DailyQuota int64
	BulkMax    int
}

// Service manages links on behalf of their owners.
type Service struct {
	repo      Repository
	generator *Generator
	aliases   AliasPolicy
	cache     CacheInvalidator
	cfg       ServiceConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new link service.
func NewService(
	repo Repository,
	generator *Generator,
	aliases AliasPolicy,
	cache CacheInvalidator,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		generator: generator,
		aliases:   aliases,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now

	return s
}

// Create validates and stores a new link for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Link, error) {
	if err := s.checkQuota(ctx, ownerID, 1); err != nil {
		return nil, err
	}

	return s.create(ctx, ownerID, in)
}

// CreateBulk creates several links, reporting each item separately.
func (s *Service) CreateBulk(ctx context.Context, ownerID string, inputs []CreateInput) ([]BulkResult, error) {
	if len(inputs) > s.cfg.BulkMax {
		return nil, fmt.Errorf("%w: max %d", ErrBulkTooLarge, s.cfg.BulkMax)
	}

	if err := s.checkQuota(ctx, ownerID, int64(len(inputs))); err != nil {
		return nil, err
	}

	results := make([]BulkResult, len(inputs))

	for i, in := range inputs {
		link, err := s.create(ctx, ownerID, in)
		results[i] = BulkResult{Link: link, Err: err}
	}

	return results, nil
}

func (s *Service) create(ctx context.Context, ownerID string, in CreateInput) (*Link, error) {
	destination, err := NormalizeDestination(in.Destination)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	if in.ClickLimit != nil && *in.ClickLimit < 1 {
		return nil, ErrInvalidClickLimit
	}

	link := &Link{
		Destination: destination,
		OwnerID:     ownerID,
		CreatedAt:   now,
		ExpiresAt:   in.ExpiresAt,
		ClickLimit:  in.ClickLimit,
	}

	if in.Alias != "" {
		return s.createWithAlias(ctx, link, in.Alias)
	}

	// A generated code can still lose the insert race to a concurrent create.
	for range s.generator.attempts {
		code, err := s.generator.Generate(ctx)
		if err != nil {
			if errors.Is(err, ErrCodeSpaceExhausted) {
				s.logger.Error("short code space exhausted", zap.String("owner", ownerID))
			}

			return nil, err
		}

		link.Code = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, ErrCodeTaken) {
			return nil, fmt.Errorf("create link: %w", err)
		}
	}

	s.logger.Error("short code space exhausted", zap.String("owner", ownerID))

	return nil, ErrCodeSpaceExhausted
}

func (s *Service) createWithAlias(ctx context.Context, link *Link, alias string) (*Link, error) {
	if err := s.aliases.Validate(alias); err != nil {
		return nil, err
	}

	link.Code = Code(alias)

	taken, err := s.repo.Exists(ctx, link.Code)
	if err != nil {
		return nil, fmt.Errorf("check alias: %w", err)
	}

	if taken {
		return nil, ErrCodeTaken
	}

	if err := s.repo.Create(ctx, link); err != nil {
		if errors.Is(err, ErrCodeTaken) {
			return nil, err
		}

		return nil, fmt.Errorf("create link: %w", err)
	}

	return link, nil
}

func (s *Service) checkQuota(ctx context.Context, ownerID string, adding int64) error {
	if s.cfg.DailyQuota <= 0 {
		return nil
	}

	count, err := s.repo.CountCreatedSince(ctx, ownerID, s.now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("count links: %w", err)
	}

	if count+adding > s.cfg.DailyQuota {
		return fmt.Errorf("%w: %d per day", ErrQuotaExceeded, s.cfg.DailyQuota)
	}

	return nil
}

// Get returns one of the owner's links. Links of other owners are reported as not found.
func (s *Service) Get(ctx context.Context, ownerID string, code Code) (*Link, error) {
	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	return link, nil
}

// List returns a page of the owner's links and the total count.
func (s *Service) List(ctx context.Context, ownerID string, page Page) ([]Link, int64, error) {
	return s.repo.ListByOwner(ctx, ownerID, page)
}

// Update applies an owner edit and drops any cached resolution of the code.
func (s *Service) Update(ctx context.Context, ownerID string, code Code, update Update) (*Link, error) {
	if _, err := s.Get(ctx, ownerID, code); err != nil {
		return nil, err
	}

	if update.Destination != nil {
		destination, err := NormalizeDestination(*update.Destination)
		if err != nil {
			return nil, err
		}

		update.Destination = &destination
	}

	if update.ClickLimit != nil && *update.ClickLimit < 1 {
		return nil, ErrInvalidClickLimit
	}

	link, err := s.repo.Update(ctx, code, update)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, string(code))

	return link, nil
}

// Delete removes an owner's link and its cached resolution.
func (s *Service) Delete(ctx context.Context, ownerID string, code Code) error {
	if _, err := s.Get(ctx, ownerID, code); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, string(code))

	return nil
}
