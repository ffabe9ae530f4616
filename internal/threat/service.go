package threat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/leaf/internal"
)

type Service struct {
	categories CategoryRepository
	threats    ThreatRepository
	logger     *slog.Logger
}

func NewService(categories CategoryRepository, threats ThreatRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		categories: categories,
		threats:    threats,
		logger:     logger,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]CategoryResponse, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, ToCategoryResponse(c))
	}
	return out, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*CategoryResponse, error) {
	name = strings.TrimSpace(name)
	c, err := s.categories.Create(ctx, name)
	if err != nil {
		if errors.Is(err, ErrDuplicateCategory) {
			return nil, internal.ErrCategoryTaken
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.logger.Info("threat category created", "category", c.Name, "id", c.ID)
	resp := ToCategoryResponse(*c)
	return &resp, nil
}

// ListThreats lists every threat, or those of one category when categoryID > 0.
func (s *Service) ListThreats(ctx context.Context, categoryID int64) ([]ThreatResponse, error) {
	threats, err := s.threats.List(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list threats: %w", err)
	}
	out := make([]ThreatResponse, 0, len(threats))
	for _, t := range threats {
		out = append(out, ToThreatResponse(t))
	}
	return out, nil
}

func (s *Service) GetThreat(ctx context.Context, id int64) (*ThreatResponse, error) {
	t, err := s.threats.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find threat: %w", err)
	}
	if t == nil {
		return nil, internal.ErrThreatNotFound
	}
	resp := ToThreatResponse(*t)
	return &resp, nil
}

func (s *Service) CreateThreat(ctx context.Context, req CreateThreatRequest) (*ThreatResponse, error) {
	c, err := s.categories.FindByID(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if c == nil {
		return nil, internal.ErrCategoryNotFound
	}

	t := &Threat{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		CategoryID: c.ID,
		Category:   *c,
	}
	if err := s.threats.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create threat: %w", err)
	}
	s.logger.Info("threat reported", "id", t.ID, "category", c.Name)
	resp := ToThreatResponse(*t)
	return &resp, nil
}
