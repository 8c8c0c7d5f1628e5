package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moon/internal/cipher"
	"github.com/roach88/moon/internal/config"
	"github.com/roach88/moon/internal/testutil"
)

func TestMatch_Curry(t *testing.T) {
	db := testDB(t)

	out, _, err := runCLI(t, "--db", db, "match", "add", "2")
	require.NoError(t, err)
	assert.Equal(t, "add<:>[\"2\"]\n", out)

	out, _, err = runCLI(t, "--db", db, "match", strings.TrimSpace(out), "3")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestMatch_JSONRight(t *testing.T) {
	db := testDB(t)

	out, _, err := runCLI(t, "--db", db, "match", "len", `["a","b"]`, "--json")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, _, err = runCLI(t, "--db", db, "match", "len", `["a"`, "--json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMatch_JSONFormat(t *testing.T) {
	db := testDB(t)

	out, _, err := runCLI(t, "--db", db, "--format", "json", "match", "split", `a,b`)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok","data":"split<:>[\"a,b\"]"}`+"\n", out)
}

func TestMatch_UnknownCall(t *testing.T) {
	db := testDB(t)

	out, stderr, err := runCLI(t, "--db", db, "match", "ghosts", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error [UNKNOWN_CALL]")

	out, _, err = runCLI(t, "--db", db, "--format", "json", "match", "ghosts", "1")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "UNKNOWN_CALL", resp.Error.Code)
}

func TestStorageCommands(t *testing.T) {
	db := testDB(t)

	out, _, err := runCLI(t, "--db", db, "insert", "users", "1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "users\n", out)

	_, _, err = runCLI(t, "--db", db, "insert", "users", "?", "guest")
	require.NoError(t, err)

	out, _, err = runCLI(t, "--db", db, "match", "users", "1")
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)

	out, _, err = runCLI(t, "--db", db, "match", "users", "42")
	require.NoError(t, err)
	assert.Equal(t, "guest\n", out)

	out, _, err = runCLI(t, "--db", db, "watch", "users")
	require.NoError(t, err)
	assert.Equal(t, `{"1":"alice","?":"guest"}`+"\n", out)

	out, _, err = runCLI(t, "--db", db, "delete", "users", "?")
	require.NoError(t, err)
	assert.Equal(t, "?\n", out)

	out, _, err = runCLI(t, "--db", db, "match", "users", "42")
	require.NoError(t, err)
	assert.Equal(t, "\n", out)

	out, _, err = runCLI(t, "--db", db, "remove", "users")
	require.NoError(t, err)
	assert.Equal(t, "users\n", out)

	_, _, err = runCLI(t, "--db", db, "match", "users", "1")
	require.Error(t, err)
}

func TestInsert_JSONValue(t *testing.T) {
	db := testDB(t)

	_, _, err := runCLI(t, "--db", db, "insert", "lists", "x", `["a","b","c"]`, "--json")
	require.NoError(t, err)

	out, _, err := runCLI(t, "--db", db, "exec", `["len", ["a","b","c"]]`)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, _, err = runCLI(t, "--db", db, "watch", "lists")
	require.NoError(t, err)
	assert.Equal(t, `{"x":{"0":"a","1":"b","2":"c"}}`+"\n", out)
}

func TestExec(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		expr string
		want string
	}{
		{`["add","2","3"]`, "5"},
		{`["for",[["add","1","2"],["mul","2","5"]]]`, "10"},
		{`add<:>["2","3"]`, "5"},
		{`"mul<:>[\"6\",\"7\"]"`, "42"},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			out, _, err := runCLI(t, "--db", db, "exec", tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want+"\n", out)
		})
	}
}

func TestExec_Incomplete(t *testing.T) {
	db := testDB(t)

	_, stderr, err := runCLI(t, "--db", db, "exec", "add")
	require.Error(t, err)
	assert.Contains(t, stderr, "INCOMPLETE_CALL")
}

func TestWatch_All(t *testing.T) {
	db := testDB(t)

	_, _, err := runCLI(t, "--db", db, "insert", "notes", "1", "n")
	require.NoError(t, err)

	out, _, err := runCLI(t, "--db", db, "watch", "fn")
	require.NoError(t, err)
	assert.Contains(t, out, `"notes":"notes"`)
	assert.Contains(t, out, `"add":"add"`)
}

func TestEncryptDecrypt_WithEnvKey(t *testing.T) {
	db := testDB(t)
	t.Setenv(config.EnvPrivateKey, cipher.EncodeKey(testutil.FixedPrivateKey))

	ct, _, err := runCLI(t, "--db", db, "match", "encrypt", "hello")
	require.NoError(t, err)
	ct = strings.TrimSpace(ct)
	assert.NotEqual(t, "hello", ct)

	out, _, err := runCLI(t, "--db", db, "match", "decrypt", ct)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestEncrypt_NoKeys(t *testing.T) {
	db := testDB(t)

	_, stderr, err := runCLI(t, "--db", db, "match", "encrypt", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "Error [INTERNAL]")
}

func TestRuntime_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "moon.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+db+"\n"), 0o644))

	_, _, err := runCLI(t, "--config", cfgPath, "insert", "c", "1", "v")
	require.NoError(t, err)
	_, err = os.Stat(db)
	assert.NoError(t, err, "database should be created at the configured path")
}

func TestRuntime_BadConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "moon.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("nope: true\n"), 0o644))

	_, _, err := runCLI(t, "--config", cfgPath, "watch", "fn")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRuntime_BadKey(t *testing.T) {
	db := testDB(t)
	t.Setenv(config.EnvPublicKey, "not-base64!")

	_, _, err := runCLI(t, "--db", db, "watch", "fn")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load keys")
}

func TestRuntime_VerboseLogsToStderr(t *testing.T) {
	db := testDB(t)

	out, stderr, err := runCLI(t, "--db", db, "-v", "match", "add", "1")
	require.NoError(t, err)
	assert.Equal(t, "add<:>[\"1\"]\n", out)
	assert.Contains(t, stderr, "opening database")
}
