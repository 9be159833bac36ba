package service

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gamevisor/internal/models"
)

const versionProbeTimeout = 5 * time.Second

// RuntimeFinder discovers Java runtimes installed on the host.
type RuntimeFinder interface {
	Find(ctx context.Context) []models.RuntimeInfo
}

// JavaFinder scans JAVA_HOME, well-known install directories and PATH.
type JavaFinder struct {
	// Roots are directories whose children are JDK homes.
	Roots []string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Probe runs "java -version" and returns its output. Defaults to
	// executing the binary.
	Probe func(ctx context.Context, java string) ([]byte, error)
}

// DefaultJavaRoots returns the platform's usual JDK install directories.
func DefaultJavaRoots() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{`C:\Program Files\Java`, `C:\Program Files (x86)\Java`}
	case "darwin":
		return []string{"/Library/Java/JavaVirtualMachines"}
	default:
		return []string{"/usr/lib/jvm", "/usr/java", "/opt/java"}
	}
}

func NewJavaFinder() *JavaFinder {
	return &JavaFinder{
		Roots:  DefaultJavaRoots(),
		Getenv: os.Getenv,
		Probe:  probeJava,
	}
}

func javaExecutable() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

func (f *JavaFinder) Find(ctx context.Context) []models.RuntimeInfo {
	var candidates []string

	if home := f.Getenv("JAVA_HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "bin", javaExecutable()))
	}

	for _, root := range f.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			home := filepath.Join(root, e.Name())
			if runtime.GOOS == "darwin" {
				home = filepath.Join(home, "Contents", "Home")
			}
			candidates = append(candidates, filepath.Join(home, "bin", javaExecutable()))
		}
	}

	for _, dir := range filepath.SplitList(f.Getenv("PATH")) {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, javaExecutable()))
		}
	}

	seen := make(map[string]bool)
	var found []models.RuntimeInfo
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}

		key := c
		if resolved, err := filepath.EvalSymlinks(c); err == nil {
			key = resolved
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		version, ok := f.version(ctx, c)
		found = append(found, models.RuntimeInfo{
			Version: version,
			Path:    c,
			Valid:   ok,
		})
	}

	return found
}

func (f *JavaFinder) version(ctx context.Context, java string) (string, bool) {
	probe := f.Probe
	if probe == nil {
		probe = probeJava
	}

	out, err := probe(ctx, java)
	if err != nil {
		return "unknown", false
	}
	return ParseJavaVersion(out), true
}

func probeJava(ctx context.Context, java string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, java, "-version")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stderr.Bytes(), nil
}

// ParseJavaVersion extracts the quoted version from the first line of
// "java -version" output, e.g. `openjdk version "21.0.2" 2024-01-16`.
func ParseJavaVersion(out []byte) string {
	first, _, _ := strings.Cut(string(out), "\n")
	parts := strings.Split(first, `"`)
	if len(parts) < 2 || parts[1] == "" {
		return "unknown"
	}
	return parts[1]
}
