package clients

import (
	"context"
	"errors"
)

// Service wraps the client repository with input checks.
type Service struct {
	repo Repository
}

// NewService builds a client service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	if id <= 0 {
		return nil, errors.New("invalid client ID")
	}
	return s.repo.Get(ctx, id)
}
