package database

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

var upMigration = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// MigrationLogger routes golang-migrate output to the service logger
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return false
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Debugf(strings.TrimRight(format, "\n"), v...)
}

type MigrationConfig struct {
	// MigrationFolderPath holds one sub folder per driver, e.g. db/migrations/postgres
	MigrationFolderPath string
	// Version pins the target schema version. Zero means the newest.
	Version uint
	// Force marks the database as clean at this version before migrating
	Force int
	// AutoRollback marks a database left dirty by a failed migration as clean at the
	// version it had before the attempt
	AutoRollback bool
}

// MigrationService applies the audit schema migrations
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// Migrate brings the schema of db to the configured version
func (ms *MigrationService) Migrate(db DB) error {
	folder := ms.folderFor(db.DriverName())
	latest, err := latestVersion(folder)
	if err != nil {
		return errors.Wrapf(err, "migration folder %s", folder)
	}

	driver, err := driverInstance(db)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+folder, db.DriverName(), driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		ms.logger.Warnf("Forcing database to migration version %d", ms.config.Force)
		if err := m.Force(ms.config.Force); err != nil {
			return errors.Wrapf(err, "failed to force version %d", ms.config.Force)
		}
	}

	from, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return errors.Errorf("database is dirty at version %d, set DB_MIGRATION_FORCE to repair it", from)
	}
	if from > latest {
		// written by a newer release; this binary cannot describe the schema
		ms.logger.Warnf("Database is at version %d, newer than the latest known version %d. Skipping migrations", from, latest)
		return nil
	}

	target := ms.config.Version
	if target == 0 {
		target = latest
	}

	log := ms.logger.WithFields(map[string]any{"driver": db.DriverName(), "from": from, "to": target})
	start := time.Now()

	err = m.Migrate(target)
	switch {
	case err == nil:
		log.Infof("Applied migrations in %s", time.Since(start))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Schema is up to date")
		return nil
	default:
		return ms.recover(m, from, err)
	}
}

func (ms *MigrationService) recover(m *migrate.Migrate, from uint, cause error) error {
	failedAt, dirty, err := currentVersion(m)
	if err != nil || !dirty || !ms.config.AutoRollback {
		return errors.Wrap(cause, "failed to apply migrations")
	}

	// -1 clears the version table
	previous := -1
	if from > 0 {
		previous = int(from)
	}
	ms.logger.Warnf("Migration to version %d failed. Marking database clean at version %d", failedAt, previous)
	if err := m.Force(previous); err != nil {
		return errors.Wrapf(err, "failed to revert to version %d after %v", previous, cause)
	}
	return errors.Wrapf(cause, "migration to version %d failed and was reverted", failedAt)
}

func (ms *MigrationService) folderFor(driverName string) string {
	folder := filepath.Join(ms.config.MigrationFolderPath, driverName)
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return folder
}

func driverInstance(db DB) (migratedb.Driver, error) {
	switch db.DriverName() {
	case DriverPostgres:
		instance, err := postgres.WithInstance(db.SQLDB(), &postgres.Config{})
		return instance, errors.Wrap(err, "failed to create postgres migration driver")
	case DriverSQLite:
		instance, err := sqlite.WithInstance(db.SQLDB(), &sqlite.Config{})
		return instance, errors.Wrap(err, "failed to create sqlite migration driver")
	default:
		return nil, errors.Errorf("no migration driver for %q", db.DriverName())
	}
}

func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to read migration version")
	}
	return version, dirty, nil
}

// latestVersion returns the highest up migration in folder
func latestVersion(folder string) (uint, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	var latest uint
	for _, entry := range entries {
		match := upMigration.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return 0, err
		}
		latest = max(latest, uint(v))
	}
	if latest == 0 {
		return 0, errors.New("no migration files found")
	}
	return latest, nil
}
