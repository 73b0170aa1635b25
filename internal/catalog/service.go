package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input ProductInput) (Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	AdjustStock(ctx context.Context, productID, delta int64, reason string) (int64, error)
	GetStockCard(ctx context.Context, productID int64, limit int) ([]StockCardEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product catalog operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache *Cache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// CreateProduct registers a new product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	if input.Code == "" || input.Name == "" {
		return Product{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	if input.UnitPrice < 0 || input.UnitCost < 0 {
		return Product{}, fmt.Errorf("%w: prices must be >= 0", ErrValidation)
	}
	p, err := s.repo.Create(ctx, input)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Bump(ctx)
	return p, nil
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if input.Code == "" || input.Name == "" {
		return Product{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	p, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Bump(ctx)
	return p, nil
}

// GetProduct returns a product, served from cache when possible.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	key, err := s.cache.BuildKey(ctx, "catalog", "product", strconv.FormatInt(id, 10))
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var p Product
	err = s.cache.FetchJSON(ctx, key, &p, func(ctx context.Context) (interface{}, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// AdjustStock applies a manual stock correction. Ledger-driven stock
// mutations do not pass through here; they run inside the ledger's own
// transaction boundary.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (int64, error) {
	if input.ProductID == 0 {
		return 0, fmt.Errorf("%w: product required", ErrValidation)
	}
	if input.Delta == 0 {
		return 0, fmt.Errorf("%w: delta must be non zero", ErrValidation)
	}
	reason := input.Reason
	if reason == "" {
		reason = "ADJUST"
	}
	after, err := s.repo.AdjustStock(ctx, input.ProductID, input.Delta, reason)
	if err != nil {
		return 0, err
	}
	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "catalog:adjust",
			Entity:   "product",
			EntityID: strconv.FormatInt(input.ProductID, 10),
			Meta: map[string]any{
				"delta":  input.Delta,
				"reason": reason,
				"after":  after,
			},
		})
	}
	return after, nil
}

// GetStockCard lists movement-log entries for a product.
func (s *Service) GetStockCard(ctx context.Context, productID int64, limit int) ([]StockCardEntry, error) {
	if productID == 0 {
		return nil, fmt.Errorf("%w: product required", ErrValidation)
	}
	return s.repo.GetStockCard(ctx, productID, limit)
}
