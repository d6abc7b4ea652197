package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-jadwal-mapel/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "jadwal",
		Password: "it's secret",
		Name:     "audit",
		SSLMode:  "disable",
	})
	assert.Equal(t, `host=db.internal user=jadwal password='it\'s secret' dbname=audit sslmode=disable application_name=jadwal-mapel-bff connect_timeout=5 port=5433`, dsn)
}

func TestDSNOmitsEmptyValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost"})
	assert.Equal(t, "host=localhost application_name=jadwal-mapel-bff connect_timeout=5", dsn)
}
