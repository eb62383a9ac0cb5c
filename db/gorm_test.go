package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storyreel/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.Config{
		DBUser:     "story",
		DBPassword: "p@ss:word",
		DBHost:     "db.local",
		DBPort:     "3307",
		DBName:     "storyreel",
	})
	assert.Contains(t, dsn, "story:p@ss:word@tcp(db.local:3307)/storyreel?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestAutoMigrateWithoutConnection(t *testing.T) {
	GormDB = nil
	assert.Error(t, AutoMigrateModels())
	assert.NoError(t, CloseGormDB())
}
