package main

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigrations "github.com/wolfman30/clinic-scheduling/migrations"
)

type fakeMigrator struct {
	upErr   error
	steps   int
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error { return f.upErr }
func (f *fakeMigrator) Steps(n int) error { f.steps = n; return nil }
func (f *fakeMigrator) Force(v int) error { f.forced = v; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, f.verErr }

func TestApply(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange, version: 2}

	msg, err := apply(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "migrations complete", msg)

	_, err = apply(m, []string{"down", "1"})
	require.NoError(t, err)
	assert.Equal(t, -1, m.steps)

	_, err = apply(m, []string{"force", "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)

	msg, err = apply(m, []string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version 2 (dirty=false)", msg)

	_, err = apply(m, []string{"force", "x"})
	assert.Error(t, err)
	_, err = apply(m, []string{"down", "0"})
	assert.Error(t, err)
	_, err = apply(m, []string{"sideways"})
	assert.EqualError(t, err, usage)
}

func TestApplyPropagatesUpFailure(t *testing.T) {
	_, err := apply(&fakeMigrator{upErr: errors.New("dirty database")}, []string{"up"})
	assert.ErrorContains(t, err, "dirty database")

	msg, err := apply(&fakeMigrator{verErr: migrate.ErrNilVersion}, []string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "no migrations applied", msg)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(appmigrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(appmigrations.FS, "*.down.sql")
	require.NoError(t, err)
	assert.Len(t, ups, 2)
	assert.Len(t, downs, len(ups))
}
