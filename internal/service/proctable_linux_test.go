package service

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func burnCPU(d time.Duration) int {
	n := 0
	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
		n++
	}
	return n
}

func TestProcfsTableLooksUpSelf(t *testing.T) {
	table, ok := NewProcessTable().(*procfsTable)
	require.True(t, ok, "linux uses the procfs table")

	pid := os.Getpid()

	first, ok := table.Lookup(pid)
	require.True(t, ok)
	assert.Positive(t, first.MemoryBytes)
	assert.Zero(t, first.CPUPercent, "the first lookup has no previous mark")

	burnCPU(200 * time.Millisecond)

	second, ok := table.Lookup(pid)
	require.True(t, ok)
	assert.Positive(t, second.CPUPercent)
	assert.Positive(t, second.MemoryBytes)

	_, ok = table.Lookup(0)
	assert.False(t, ok)

	_, ok = table.Lookup(math.MaxInt32)
	assert.False(t, ok)

	table.mu.Lock()
	_, tracked := table.last[math.MaxInt32]
	table.mu.Unlock()
	assert.False(t, tracked)
}
