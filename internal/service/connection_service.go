package service

import (
	"context"

	"github.com/vellko/affiliate-admin/internal/cache"
	"github.com/vellko/affiliate-admin/internal/repository"
)

const (
	cakeConnectionKey   = "connections:cake"
	ringbaConnectionKey = "connections:ringba"
)

// ConnectionService resolves active partner connections, keeping decrypted
// credentials in a short-TTL cache so each decision does not pay a database
// and decrypt round-trip.
type ConnectionService struct {
	repo  *repository.ConnectionRepository
	cache *cache.Cache
}

// NewConnectionService creates a connection service.
func NewConnectionService(repo *repository.ConnectionRepository, c *cache.Cache) *ConnectionService {
	return &ConnectionService{repo: repo, cache: c}
}

// GetCake returns the active Cake connection.
func (s *ConnectionService) GetCake(ctx context.Context) (*repository.CakeConnection, error) {
	var conn repository.CakeConnection
	if s.cache != nil && s.cache.Get(ctx, cakeConnectionKey, &conn) {
		return &conn, nil
	}

	fresh, err := s.repo.GetCake(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cakeConnectionKey, fresh)
	}
	return fresh, nil
}

// GetRingba returns the active Ringba connection.
func (s *ConnectionService) GetRingba(ctx context.Context) (*repository.RingbaConnection, error) {
	var conn repository.RingbaConnection
	if s.cache != nil && s.cache.Get(ctx, ringbaConnectionKey, &conn) {
		return &conn, nil
	}

	fresh, err := s.repo.GetRingba(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, ringbaConnectionKey, fresh)
	}
	return fresh, nil
}

// SaveCake stores new Cake credentials and drops the cached copy.
func (s *ConnectionService) SaveCake(ctx context.Context, conn *repository.CakeConnection) error {
	if err := s.repo.SaveCake(ctx, conn); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cakeConnectionKey)
	}
	return nil
}

// SaveRingba stores new Ringba credentials and drops the cached copy.
func (s *ConnectionService) SaveRingba(ctx context.Context, conn *repository.RingbaConnection) error {
	if err := s.repo.SaveRingba(ctx, conn); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, ringbaConnectionKey)
	}
	return nil
}
