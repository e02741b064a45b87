package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

// writeToyConfig writes a tiny corpus and a config file training on it.
func writeToyConfig(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	corpus := func(name, format string) string {
		path := filepath.Join(dir, name)
		var entries []string
		for i := 0; i < 4; i++ {
			entries = append(entries, fmt.Sprintf(format, i))
		}
		must.M(os.WriteFile(path, []byte(strings.Join(entries, "\n\n")), 0644))
		return filepath.ToSlash(path)
	}
	configPath = filepath.Join(dir, "ravensaid.toml")
	must.M(os.WriteFile(configPath, []byte(fmt.Sprintf(`
history = %q

[network]
hidden = 4

[train]
epochs = 2
learning_rate = 0.01
shard_rotation = false

[checkpoint]
dir = %q

[[source]]
name = "raven"
label = true
paths = [%q]

[[source]]
name = "others"
paths = [%q]
`, filepath.ToSlash(filepath.Join(dir, "history.db")), filepath.ToSlash(dir),
		corpus("raven.txt", "CAW %d"), corpus("others.txt", "hello %d"))), 0644))
	return configPath, dir
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"fly"},
		{"run"},
		{"run", "a.nn", "b.nn"},
		{"train", "a", "b"},
		{"-nosuchflag", "train"},
	} {
		code, _, stderr := runCmd(t, "", args...)
		assert.Equal(t, exitUsage, code, "args %q", args)
		assert.Contains(t, stderr, "Usage", "args %q", args)
	}
}

func TestHelp(t *testing.T) {
	code, _, stderr := runCmd(t, "", "-help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "train [prefix]")
}

func TestMissingFiles(t *testing.T) {
	code, _, _ := runCmd(t, "", "run", filepath.Join(t.TempDir(), "absent.nn"))
	assert.Equal(t, exitMissingFile, code)

	code, _, _ = runCmd(t, "", "-config", filepath.Join(t.TempDir(), "absent.toml"), "train")
	assert.Equal(t, exitMissingFile, code)

	// Default sources under data/ do not exist in the test directory.
	code, _, _ = runCmd(t, "", "-config", writeConfigFile(t, "[train]\nepochs = 1\n"), "train", "x_")
	assert.Equal(t, exitMissingFile, code)
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c.toml")
	must.M(os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestInvalidConfig(t *testing.T) {
	code, _, _ := runCmd(t, "", "-config", writeConfigFile(t, "[train]\nepochs = 0\n"), "train")
	assert.Equal(t, exitFailure, code)
}

func TestTrainRunHistory(t *testing.T) {
	configPath, dir := writeToyConfig(t)

	code, stdout, stderr := runCmd(t, "", "-config", configPath, "train", "cli_")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "cli_epoch_1.nn")
	checkpoint := filepath.Join(dir, "cli_epoch_1.nn")
	require.FileExists(t, checkpoint)

	code, stdout, stderr = runCmd(t, "CAW 1\n\nexit\n", "-config", configPath, "run", checkpoint)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, 1, strings.Count(stdout, "Likelihood that Ravenholdt said ^:"))

	code, stdout, stderr = runCmd(t, "", "-config", configPath, "history")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "cli_")
	assert.Contains(t, stdout, "finished")

	// A checkpoint from a different topology is rejected.
	code, _, _ = runCmd(t, "", "run", checkpoint)
	assert.Equal(t, exitFailure, code)
}

func TestHistoryNotConfigured(t *testing.T) {
	code, _, _ := runCmd(t, "", "history")
	assert.Equal(t, exitUsage, code)
}
