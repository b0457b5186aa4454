package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded PostgreSQL migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Account{},
		&creditdomain.Transaction{},
		&casedomain.Case{},
		&casedomain.Note{},
		&evidencedomain.Evidence{},
		&letterdomain.Letter{},
		&dispatchdomain.LetterSend{},
		&approvaldomain.Approval{},
		&paymentdomain.EventRecord{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema from the models. It backs sqlite and mysql
// deployments and the test suites.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
