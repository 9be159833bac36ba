package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJavaVersion(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{`openjdk version "21.0.2" 2024-01-16` + "\nOpenJDK Runtime Environment", "21.0.2"},
		{`java version "1.8.0_381"`, "1.8.0_381"},
		{"garbage", "unknown"},
		{`openjdk version ""`, "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseJavaVersion([]byte(tt.out)), tt.out)
	}
}

// fakeJDK creates an executable java binary inside a JDK home under root and
// returns its path.
func fakeJDK(t *testing.T, root, name string) string {
	t.Helper()

	home := filepath.Join(root, name)
	if runtime.GOOS == "darwin" {
		home = filepath.Join(home, "Contents", "Home")
	}
	bin := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	java := filepath.Join(bin, javaExecutable())
	require.NoError(t, os.WriteFile(java, []byte("#!/bin/sh\n"), 0o755))
	return java
}

func TestJavaFinderDiscovers(t *testing.T) {
	root := t.TempDir()
	jdk17 := fakeJDK(t, root, "jdk-17")
	jdk21 := fakeJDK(t, root, "jdk-21")

	// A stray directory without a java binary is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-jdk"), 0o755))

	env := map[string]string{
		"JAVA_HOME": filepath.Dir(filepath.Dir(jdk21)),
		"PATH":      filepath.Dir(jdk17) + string(os.PathListSeparator) + t.TempDir(),
	}

	f := &JavaFinder{
		Roots:  []string{root, filepath.Join(root, "missing")},
		Getenv: func(k string) string { return env[k] },
		Probe: func(ctx context.Context, java string) ([]byte, error) {
			switch {
			case strings.Contains(java, "jdk-17"):
				return []byte(`openjdk version "17.0.9" 2023-10-17`), nil
			case strings.Contains(java, "jdk-21"):
				return []byte(`openjdk version "21.0.2" 2024-01-16`), nil
			}
			return nil, errors.New("unexpected binary")
		},
	}

	found := f.Find(context.Background())
	require.Len(t, found, 2)

	byPath := map[string]string{}
	for _, rt := range found {
		assert.True(t, rt.Valid)
		byPath[rt.Path] = rt.Version
	}
	assert.Equal(t, "21.0.2", byPath[jdk21])
	assert.Equal(t, "17.0.9", byPath[jdk17])
	// JAVA_HOME comes first.
	assert.Equal(t, jdk21, found[0].Path)
}

func TestJavaFinderMarksBrokenRuntimes(t *testing.T) {
	root := t.TempDir()
	java := fakeJDK(t, root, "broken")

	f := &JavaFinder{
		Roots:  []string{root},
		Getenv: func(string) string { return "" },
		Probe: func(context.Context, string) ([]byte, error) {
			return nil, errors.New("exec format error")
		},
	}

	found := f.Find(context.Background())
	require.Len(t, found, 1)
	assert.Equal(t, java, found[0].Path)
	assert.False(t, found[0].Valid)
	assert.Equal(t, "unknown", found[0].Version)
}

func TestJavaFinderNothingInstalled(t *testing.T) {
	f := &JavaFinder{
		Roots:  []string{filepath.Join(t.TempDir(), "none")},
		Getenv: func(string) string { return "" },
	}
	assert.Empty(t, f.Find(context.Background()))
}
