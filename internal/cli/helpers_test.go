package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/roach88/moon/internal/config"
)

// clearEnv keeps the developer's MOON_* variables out of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvDB, config.EnvPublicKey, config.EnvPrivateKey,
		config.EnvAddr, config.EnvLogLevel,
	} {
		t.Setenv(k, "")
	}
}

// runCLI executes the root command with args and returns stdout and
// stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	return filepath.Join(t.TempDir(), "moon.db")
}
