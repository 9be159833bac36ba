package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDirIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "server")

	first, err := LockDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), first.Path())

	_, err = LockDir(dir)
	assert.ErrorIs(t, err, ErrLockedElsewhere)

	require.NoError(t, first.Unlock())

	second, err := LockDir(dir)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}

func TestLockDirWaitGivesUp(t *testing.T) {
	dir := t.TempDir()

	held, err := LockDir(dir)
	require.NoError(t, err)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err = LockDirWait(ctx, dir)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
