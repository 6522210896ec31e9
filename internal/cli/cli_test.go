package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloFilter = `command = "echo hello"
description = "greets"

[on_success]
output = "greeting: {output}"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupEnv points tokf at a temp config with one user filter and returns
// the temp root.
func setupEnv(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs echo")
	}
	dir := t.TempDir()
	filters := filepath.Join(dir, "filters")
	writeFile(t, filepath.Join(filters, "echo", "hello.toml"), helloFilter)
	writeFile(t, filepath.Join(filters, "echo", "hello_test", "basic.toml"), `
inline = "hi\n"
[[expect]]
equals = "greeting: hi"
`)

	cfg := filepath.Join(dir, "config.toml")
	writeFile(t, cfg, `
[filters]
dirs = ['`+filters+`']

[tracking]
enabled = true
db_path = '`+filepath.Join(dir, "tracking.db")+`'

[tee]
mode = "never"
`)
	t.Setenv("TOKF_CONFIG", cfg)
	t.Setenv("TOKF_DB_PATH", "")
	t.Setenv("TOKF_TEE", "")
	t.Setenv("TOKF_TEE_DIR", "")
	return dir
}

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	code := Execute(context.Background(), args, strings.NewReader(stdin), &out, &errb)
	return result{code: code, stdout: out.String(), stderr: errb.String()}
}

func TestImplicitRun(t *testing.T) {
	setupEnv(t)

	r := execute(t, "", "echo", "hello")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "greeting: hello\n", r.stdout)

	r = execute(t, "", "run", "--no-track", "echo", "hello")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "greeting: hello\n", r.stdout)
}

func TestRunExitCode(t *testing.T) {
	setupEnv(t)
	r := execute(t, "", "run", "sh", "-c", "exit 4")
	assert.Equal(t, 4, r.code)
}

func TestApply(t *testing.T) {
	dir := setupEnv(t)

	r := execute(t, "hi\n", "apply", "echo/hello")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "greeting: hi\n", r.stdout)

	input := filepath.Join(dir, "captured.txt")
	writeFile(t, input, "from file\n")
	r = execute(t, "", "apply", filepath.Join(dir, "filters", "echo", "hello.toml"), input)
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "greeting: from file\n", r.stdout)

	r = execute(t, "boom\n", "apply", "--exit-code", "2", "echo/hello")
	assert.Equal(t, 0, r.code)
	assert.Equal(t, "boom\n", r.stdout)
}

func TestVerify(t *testing.T) {
	dir := setupEnv(t)

	r := execute(t, "", "verify")
	assert.Equal(t, 0, r.code, r.stdout)
	assert.Contains(t, r.stdout, "PASS echo/hello: basic")
	assert.Contains(t, r.stdout, "1 cases, 0 failed")

	writeFile(t, filepath.Join(dir, "filters", "echo", "hello_test", "wrong.toml"), `
inline = "hi\n"
[[expect]]
contains = "farewell"
`)
	r = execute(t, "", "verify", "-q", "echo/hello")
	assert.Equal(t, 1, r.code)
	assert.NotContains(t, r.stdout, "PASS")
	assert.Contains(t, r.stdout, "FAIL echo/hello: wrong")
	assert.Contains(t, r.stdout, `contains "farewell"`)
}

func TestWhich(t *testing.T) {
	setupEnv(t)

	r := execute(t, "", "which", "echo", "hello", "there")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "echo/hello")

	r = execute(t, "", "which", "echo hello")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "echo/hello")

	r = execute(t, "", "which", "ls", "-la")
	assert.Equal(t, 1, r.code)
}

func TestShowAndSuggestions(t *testing.T) {
	setupEnv(t)

	r := execute(t, "", "show", "echo/hello")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, helloFilter, r.stdout)

	r = execute(t, "", "show", "echo/helo")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "tokf: ")
	assert.Contains(t, r.stderr, "did you mean echo/hello")
}

func TestHashAndLs(t *testing.T) {
	setupEnv(t)

	r := execute(t, "", "hash", "echo/hello")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Len(t, strings.TrimSpace(r.stdout), 64)

	r = execute(t, "", "ls")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "echo/hello")
	assert.Contains(t, r.stdout, "greets")
}

func TestConfig(t *testing.T) {
	setupEnv(t)
	r := execute(t, "", "config")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[tee]")
	assert.Contains(t, r.stdout, "never")
}

func TestGainAfterRun(t *testing.T) {
	setupEnv(t)
	require.Equal(t, 0, execute(t, "", "echo", "hello").code)

	r := execute(t, "", "gain", "--json")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, `"commands": 1`)
}

func TestUnknownFlag(t *testing.T) {
	setupEnv(t)
	r := execute(t, "", "--bogus")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "unknown flag")
}
