package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	require.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	require.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.True(t, IsDuplicateKeyErr(&mysql.MySQLError{Number: 1062}))
	require.True(t, IsDuplicateKeyErr(errors.New("constraint failed: UNIQUE constraint failed: credit_transactions.idempotency_key (2067)")))
	require.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	require.False(t, IsDuplicateKeyErr(nil))
}

func TestClassifyErr(t *testing.T) {
	require.Equal(t, ViolationForeignKey, ClassifyErr(&pgconn.PgError{Code: "23503"}))
	require.Equal(t, ViolationForeignKey, ClassifyErr(&mysql.MySQLError{Number: 1452}))
	require.Equal(t, ViolationForeignKey, ClassifyErr(errors.New("FOREIGN KEY constraint failed")))
	require.Equal(t, ViolationNone, ClassifyErr(&pgconn.PgError{Code: "40001"}))
}
