package products

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	ErrInvalidCriteria = errors.New("invalid product criteria")
	ErrProductNotFound = errors.New("product not found")
)

// Service provides catalog lookups for the continuous order editor
type Service struct {
	backend Backend
}

// NewService creates a new product service
func NewService(backend Backend) *Service {
	return &Service{
		backend: backend,
	}
}

// List normalizes criteria and fetches one catalog page.
func (s *Service) List(ctx context.Context, criteria Criteria) (*Page, error) {
	criteria, err := Normalize(criteria)
	if err != nil {
		return nil, err
	}

	page, err := s.backend.GetProducts(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return page, nil
}

// Lookup finds an active product by id, scanning catalog pages.
func (s *Service) Lookup(ctx context.Context, id int64, userID *int64) (*Product, error) {
	criteria := Criteria{
		Status: StatusActive,
		Limit:  MaxLimit,
		UserID: userID,
	}

	for {
		page, err := s.List(ctx, criteria)
		if err != nil {
			return nil, err
		}

		if p, ok := lo.Find(page.Products, func(p Product) bool { return p.ID == id }); ok {
			return &p, nil
		}

		criteria.Offset += len(page.Products)
		if len(page.Products) == 0 || criteria.Offset >= page.Count {
			return nil, errors.Wrapf(ErrProductNotFound, "product %d", id)
		}
	}
}

// Normalize applies defaults and rejects contradictory criteria.
func Normalize(criteria Criteria) (Criteria, error) {
	criteria.Search = strings.TrimSpace(criteria.Search)
	if criteria.Status == "" {
		criteria.Status = StatusActive
	}

	switch {
	case criteria.Limit <= 0:
		criteria.Limit = DefaultLimit
	case criteria.Limit > MaxLimit:
		criteria.Limit = MaxLimit
	}

	if criteria.Offset < 0 {
		return criteria, errors.Wrap(ErrInvalidCriteria, "offset must not be negative")
	}
	if criteria.MinPrice != nil && criteria.MinPrice.IsNegative() {
		return criteria, errors.Wrap(ErrInvalidCriteria, "min price must not be negative")
	}
	if criteria.MinPrice != nil && criteria.MaxPrice != nil && criteria.MinPrice.GreaterThan(*criteria.MaxPrice) {
		return criteria, errors.Wrap(ErrInvalidCriteria, "min price is greater than max price")
	}

	return criteria, nil
}
