package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the data store described by the URL. Postgres DSNs are the
// deployment target; sqlite:// URLs exist for local runs and tests.
func Open(url string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := gorm.Open(postgres.Open(url), cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return db, nil

	case strings.HasPrefix(url, "sqlite://"):
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(url, "sqlite://")), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", url)
	}
}
