package services

import (
	"context"

	"github.com/openbid/auction-core/pkg/pg"
)

// HealthService reports readiness. The API is up when the write database
// answers a ping.
type HealthService struct {
	db *pg.DB
}

func NewHealthService(db *pg.DB) *HealthService {
	return &HealthService{db: db}
}

func (s *HealthService) Get() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.Write(context.Background()).DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
