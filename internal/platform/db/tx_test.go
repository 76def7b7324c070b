package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsSerializationFailure(unique))

	serial := &pgconn.PgError{Code: "40001"}
	assert.True(t, IsSerializationFailure(serial))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
