package cmd

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// testProject is a throwaway workspace with a config file whose commands
// are small shell scripts standing in for the real toolchain.
type testProject struct {
	dir        string
	configPath string
	fixtures   string
	historyDB  string
	reportDir  string
	logDir     string
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// newTestProject writes templates.yaml and .templatecheck/config.yaml.
// overrides replace individual config keys.
func newTestProject(t *testing.T, templates []string, overrides map[string]interface{}) *testProject {
	t.Helper()
	dir := t.TempDir()
	p := &testProject{
		dir:        dir,
		configPath: filepath.Join(dir, ".templatecheck", "config.yaml"),
		fixtures:   filepath.Join(dir, "fixtures"),
		historyDB:  filepath.Join(dir, "history.db"),
		reportDir:  filepath.Join(dir, "reports"),
		logDir:     filepath.Join(dir, "logs"),
	}

	templatesFile := filepath.Join(dir, "templates.yaml")
	data, err := yaml.Marshal(map[string]interface{}{"templates": templates})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(templatesFile, data, 0644))

	cfg := map[string]interface{}{
		"fixtures_dir":   p.fixtures,
		"templates_file": templatesFile,
		"scaffold_command": []string{"sh", "-c",
			`mkdir -p "$1" && cd "$1" && mkdir -p public src && touch .gitignore package.json && echo "$5" > commit.txt`,
			"sh"},
		"install_command": []string{"true"},
		"dev_command":     []string{"sh", "-c", `echo "Server started"; sleep 30`, "sh"},
		"build_command":   []string{"sh", "-c", `mkdir -p dist/_astro && echo ok > dist/index.html`},
		"idle_timeout":    "5s",
		"probe_host":      "127.0.0.1",
		"probe_timeout":   "5s",
		"log_dir":         p.logDir,
		"history_db":      p.historyDB,
		"report_dir":      p.reportDir,
	}
	for k, v := range overrides {
		cfg[k] = v
	}

	data, err = yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.configPath), 0755))
	require.NoError(t, os.WriteFile(p.configPath, data, 0644))
	return p
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// servePage starts an HTTP server standing in for the dev server and
// returns its port.
func servePage(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}
