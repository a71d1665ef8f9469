package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/docs?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/docs?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/docs", migrateURL("postgresql://localhost/docs"))
	assert.Equal(t, "pgx5://localhost/docs", migrateURL("pgx5://localhost/docs"))
}
