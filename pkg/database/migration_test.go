package database

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrator pops one entry off versions per Version() call so a test can
// model the database version recorded before and after a failed run.
type fakeMigrator struct {
	versions []uint
	dirty    bool

	upErr      error
	migrateErr error

	forced []int
}

func (m *fakeMigrator) Up() error                  { return m.upErr }
func (m *fakeMigrator) Migrate(version uint) error { return m.migrateErr }

func (m *fakeMigrator) Force(version int) error {
	m.forced = append(m.forced, version)
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	v := m.versions[0]
	if len(m.versions) > 1 {
		m.versions = m.versions[1:]
	}
	return v, m.dirty, nil
}

func newMigrationService(config *MigrationConfig) *MigrationService {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewMigrationService(logger, config)
}

func TestMigrationService_RunMigration(t *testing.T) {
	t.Run("applies migrations", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{2}}

		err := newMigrationService(&MigrationConfig{}).runMigration(m)
		require.NoError(t, err)
		assert.Empty(t, m.forced)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{2}, upErr: migrate.ErrNoChange}

		err := newMigrationService(&MigrationConfig{}).runMigration(m)
		require.NoError(t, err)
	})

	t.Run("auto rollback reverts dirty database to the prior version and still fails", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{2, 3}, dirty: true, upErr: errors.New("syntax error in 000003")}

		err := newMigrationService(&MigrationConfig{AutoRollback: true}).runMigration(m)
		require.Error(t, err)
		assert.Equal(t, []int{2}, m.forced)
	})

	t.Run("auto rollback on a fresh database reverts below the failed version", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{0, 1}, dirty: true, upErr: errors.New("syntax error in 000001")}

		err := newMigrationService(&MigrationConfig{AutoRollback: true}).runMigration(m)
		require.Error(t, err)
		assert.Equal(t, []int{0}, m.forced)
	})

	t.Run("without auto rollback the dirty state is left untouched", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{2, 3}, dirty: true, upErr: errors.New("syntax error in 000003")}

		err := newMigrationService(&MigrationConfig{}).runMigration(m)
		require.Error(t, err)
		assert.Empty(t, m.forced)
	})

	t.Run("forced version is applied before migrating", func(t *testing.T) {
		m := &fakeMigrator{versions: []uint{2}}

		err := newMigrationService(&MigrationConfig{Force: 2}).runMigration(m)
		require.NoError(t, err)
		assert.Equal(t, []int{2}, m.forced)
	})
}
