package database

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect initializes the database connection. PostgreSQL is used for
// postgres:// URLs and key/value DSNs ("host=... user=..."), SQLite for
// anything else.
func Connect(dsn string, log *logrus.Logger) error {
	cfg := &gorm.Config{}
	if log != nil {
		cfg.Logger = NewLogger(log)
	}

	var err error
	DB, err = gorm.Open(Dialector(dsn), cfg)
	if err != nil {
		return err
	}
	return nil
}

// Dialector picks the gorm driver for dsn.
func Dialector(dsn string) gorm.Dialector {
	if IsPostgres(dsn) {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// IsPostgres reports whether dsn addresses a PostgreSQL server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "host=")
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
