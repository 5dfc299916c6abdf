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
	assessmentdomain "github.com/smallbiznis/assessly/internal/assessment/domain"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	eventsdomain "github.com/smallbiznis/assessly/internal/events/domain"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
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
	// Close would also close the shared *sql.DB.

	return nil
}

// Models lists every table the lifecycle engine owns, parents first.
func Models() []interface{} {
	return []interface{}{
		&companydomain.Company{},
		&companydomain.Member{},
		&licensedomain.Reservation{},
		&projectdomain.Project{},
		&invitedomain.Invite{},
		&assessmentdomain.Result{},
		&statsdomain.ProjectCandidate{},
		&statsdomain.TransitionMark{},
		&eventsdomain.Event{},
	}
}

// AutoMigrate builds the schema from the models. It backs the sqlite dialects and tests.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
