package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempDB points the CLI at a fresh database through the environment.
func useTempDB(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"EVSTORE_DRIVER", "EVSTORE_DEFAULT_LIMIT", "EVSTORE_LOG_LEVEL", "EVSTORE_LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("EVSTORE_DB_URL", path)
	return path
}

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unwraps the data of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "evstore", cmd.Use)
	assert.Contains(t, cmd.Long, "event streams")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"put", "continuous"}, {"put", "discrete"},
		{"get", "continuous"}, {"get", "discrete"}, {"ingest"},
		{"device", "ls"}, {"device", "rm"}, {"stats"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "false", verboseFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	useTempDB(t)
	_, err := runCLI(t, "", "stats", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigNotFound(t *testing.T) {
	useTempDB(t)
	_, err := runCLI(t, "", "stats", "--config", "/nonexistent/evstore.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	useTempDB(t)
	os.Unsetenv("EVSTORE_DB_URL")

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "evstore.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("driver = \"sqlite\"\ndb_url = \""+dbPath+"\"\n"), 0644))

	out, err := runCLI(t, "", "init", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var res initResult
	decodeData(t, out, &res)
	assert.Equal(t, dbPath, res.Database)
	assert.FileExists(t, dbPath)
}

func TestInit(t *testing.T) {
	path := useTempDB(t)

	out, err := runCLI(t, "", "init", "--format", "json")
	require.NoError(t, err)
	var res initResult
	decodeData(t, out, &res)
	assert.Equal(t, path, res.Database)
	assert.ElementsMatch(t, []string{"DiscreteNotification", "ContinuousNotification"}, res.Created)

	out, err = runCLI(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "schema already present")
}
