package db

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "42703"}))
	require.False(t, IsUniqueViolation(errors.New("unique but untyped")))
	require.False(t, IsUniqueViolation(nil))
}

func TestNilTimePtr(t *testing.T) {
	require.Nil(t, NilTimePtr(pgtype.Timestamptz{}))

	now := time.Now()
	got := NilTimePtr(pgtype.Timestamptz{Time: now, Valid: true})
	require.NotNil(t, got)
	require.Equal(t, now, *got)
}
