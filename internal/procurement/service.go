// Package procurement owns purchase orders produced by approved planning
// suggestions.
package procurement

import (
	"context"
)

// RepositoryPort describes the reads used by Service.
type RepositoryPort interface {
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
}

// Service exposes purchase order queries.
type Service struct {
	repo RepositoryPort
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	PurchaseOrder
	Code  string   `json:"code"`
	Lines []POLine `json:"lines"`
}

// GetOrder loads an order by id.
func (s *Service) GetOrder(ctx context.Context, id int64) (OrderDetail, error) {
	if id <= 0 {
		return OrderDetail{}, ErrValidation
	}
	po, lines, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	if lines == nil {
		lines = []POLine{}
	}
	return OrderDetail{PurchaseOrder: po, Code: po.Code(), Lines: lines}, nil
}
