package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/resultsync/internal/confluence"
	"github.com/harrison/resultsync/internal/ledger"
	"github.com/harrison/resultsync/internal/merge"
	"github.com/harrison/resultsync/internal/models"
	"github.com/harrison/resultsync/internal/report"
)

const reportHeader = `"Status","Start Time","Name","Description"` + "\n"

const loginRow = `"passed","Tue Mar 05","test_login","[TEST NAME]///n///Login///n///[TEST DESCRIPTION]///n///Checks login///n///[EXPECTED RESULT]///n///ok///n///[TEST SETUP]///n///Linux///n///"` + "\n"

const brokenRow = `"failed","Tue Mar 05","test_broken","[TEST NAME]///n///Broken///n///"` + "\n"

const skippedRow = `"skipped","Tue Mar 05","test_skip",""` + "\n"

// rawSuites is the report generator output before normalization.
const rawSuites = reportHeader + `"passed","Tue Mar 05","test_login","[TEST NAME];
    Login;
[TEST DESCRIPTION];
    Checks login;
[EXPECTED RESULT];
    ok;
[TEST SETUP];
    Linux;
"
`

var fixedNow = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

// fakeStore is an in-memory Confluence page.
type fakeStore struct {
	body    string
	fetches int
	updates []string
	creds   confluence.Credentials
}

func (s *fakeStore) FetchPageBody(ctx context.Context, pageID string) (string, error) {
	s.fetches++
	return s.body, nil
}

func (s *fakeStore) UpdatePage(ctx context.Context, pageID, title, body string) error {
	s.updates = append(s.updates, body)
	s.body = body
	return nil
}

func (s *fakeStore) ResolveDisplayName(ctx context.Context, username string) (string, error) {
	return "Alice Tester", nil
}

// fakeRunner plays pytest and allure: the report command writes a canned
// report into its output directory.
type fakeRunner struct {
	calls [][]string
}

func (r *fakeRunner) Run(ctx context.Context, args []string) (string, error) {
	r.calls = append(r.calls, args)
	if args[0] == "pytest" {
		return "1 passed", nil
	}

	reportDir := args[len(args)-1]
	history := filepath.Join(reportDir, "history", "history-trend.json")
	if err := os.MkdirAll(filepath.Dir(history), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(history, []byte(`[{"data":{"passed":1,"total":1}}]`), 0644); err != nil {
		return "", err
	}
	suites := filepath.Join(reportDir, "data", "suites.csv")
	if err := os.MkdirAll(filepath.Dir(suites), 0755); err != nil {
		return "", err
	}
	return "Report successfully generated", os.WriteFile(suites, []byte(rawSuites), 0644)
}

type staticCredentials struct {
	creds confluence.Credentials
	err   error
}

func (s staticCredentials) Credentials(ctx context.Context) (confluence.Credentials, error) {
	return s.creds, s.err
}

// workspace is a temp directory with a config file pointing everything
// inside it.
type workspace struct {
	dir        string
	configPath string
	reports    string
	logs       string
	ledger     string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		dir:        dir,
		configPath: filepath.Join(dir, "resultsync.yaml"),
		reports:    filepath.Join(dir, "reports"),
		logs:       filepath.Join(dir, "logs"),
		ledger:     filepath.Join(dir, "state", "ledger.db"),
	}
	cfg := fmt.Sprintf(`file:
  folder: reports
  name: smoke
page:
  url: https://wiki.example.com
  id: 42
  title: Results
  space_key: QA
runner:
  work_dir: %q
log_dir: %q
ledger_path: %q
`, dir, ws.logs, ws.ledger)
	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0644))
	return ws
}

func (ws *workspace) writeReport(t *testing.T, timestamp string, rows ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(ws.reports, 0755))
	path := filepath.Join(ws.reports, report.FileName(timestamp, "smoke"))
	require.NoError(t, os.WriteFile(path, []byte(reportHeader+strings.Join(rows, "")), 0644))
	return path
}

func (ws *workspace) exports(t *testing.T) []models.ExportSummary {
	t.Helper()
	store, err := ledger.NewStore(ws.ledger)
	require.NoError(t, err)
	defer store.Close()
	exports, err := store.List(context.Background(), ledger.Filter{IncludeDryRuns: true})
	require.NoError(t, err)
	return exports
}

func newTestApp(store *fakeStore, runner *fakeRunner) *app {
	return &app{
		newRunner: func(workDir string) report.CommandRunner { return runner },
		newStore: func(cfg confluence.Config, creds confluence.Credentials, logger confluence.Logger) (merge.ContentStore, error) {
			store.creds = creds
			return store, nil
		},
		credentials: func() confluence.CredentialProvider {
			return staticCredentials{creds: confluence.Credentials{Username: "alice", Password: "secret"}}
		},
		now: fixedNow,
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(a)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	out, err := execute(t, defaultApp(), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "resultsync")
	assert.Contains(t, out, "Confluence")

	var names []string
	for _, c := range NewRootCommand().Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "report", "history", "validate"})
}

func TestRunDescriptionOnlyHelp(t *testing.T) {
	flag := newRunCommand(defaultApp()).Flags().Lookup("description-only")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "leave Result and Previous Results untouched")
	assert.NotContains(t, flag.Usage, "dates")

	out, err := execute(t, defaultApp(), "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "leave Result and Previous Results untouched")
}

func TestRunSkipTests(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeReport(t, "2024-03-04 09-00-00", brokenRow)
	ws.writeReport(t, "2024-03-05 09-00-00", loginRow, skippedRow)
	store := &fakeStore{body: "<p>Intro</p>"}

	out, err := execute(t, newTestApp(store, &fakeRunner{}), "run", "--skip-tests", "--config", ws.configPath)
	require.NoError(t, err)

	assert.Equal(t, "alice", store.creds.Username)
	require.Len(t, store.updates, 2, "table initialization plus the merged page")
	assert.True(t, strings.HasPrefix(store.body, "<p>Intro</p><table"))
	assert.Contains(t, store.body, "Alice Tester")
	assert.Contains(t, store.body, "Checks login")
	assert.Contains(t, store.body, "05.03.2024")
	assert.NotContains(t, store.body, "Broken", "only the latest report is exported")

	assert.Contains(t, out, "[4/4] Record export")
	assert.Contains(t, out, "Export Summary")

	exports := ws.exports(t)
	require.Len(t, exports, 1)
	assert.Equal(t, "42", exports[0].PageID)
	assert.Equal(t, "2024-03-05 09-00-00 smoke.csv", exports[0].SourceFile)
	assert.Equal(t, 1, exports[0].Created)
	assert.Equal(t, 1, exports[0].Skipped)
	assert.True(t, exports[0].Initialized)
	assert.False(t, exports[0].DryRun)

	runLog, err := os.ReadFile(filepath.Join(ws.logs, "latest.log"))
	require.NoError(t, err)
	assert.Contains(t, string(runLog), "EXPORT SUMMARY")
}

func TestRunBuildsReport(t *testing.T) {
	ws := newWorkspace(t)
	store := &fakeStore{body: "<p>Intro</p>"}
	runner := &fakeRunner{}

	out, err := execute(t, newTestApp(store, runner), "run", "--config", ws.configPath)
	require.NoError(t, err)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "pytest", runner.calls[0][0])
	assert.Equal(t, "allure", runner.calls[1][0])
	assert.Contains(t, out, "[1/5] Run tests and build report")

	_, err = os.Stat(filepath.Join(ws.reports, "2024-03-05 10-00-00 smoke.csv"))
	require.NoError(t, err)
	assert.Contains(t, store.body, "Checks login")
}

func TestRunDryRun(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeReport(t, "2024-03-05 09-00-00", loginRow)
	store := &fakeStore{body: "<p>Intro</p>"}

	out, err := execute(t, newTestApp(store, &fakeRunner{}), "run", "--skip-tests", "--dry-run", "--config", ws.configPath)
	require.NoError(t, err)

	assert.Empty(t, store.updates)
	assert.Contains(t, out, "page left unchanged")

	saved, err := filepath.Glob(filepath.Join(ws.logs, "dry-run-42-*.html"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	body, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "Checks login")

	exports := ws.exports(t)
	require.Len(t, exports, 1)
	assert.True(t, exports[0].DryRun)
}

func TestRunMalformedDescription(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeReport(t, "2024-03-05 09-00-00", loginRow, brokenRow)
	store := &fakeStore{body: "<p>Intro</p>"}

	_, err := execute(t, newTestApp(store, &fakeRunner{}), "run", "--skip-tests", "--config", ws.configPath)
	require.Error(t, err)

	var rowErr *merge.RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, "test_broken", rowErr.Test)
	assert.Zero(t, store.fetches, "the page is not read for bad input")
	assert.Empty(t, store.updates)
}

func TestRunErrors(t *testing.T) {
	t.Run("missing report", func(t *testing.T) {
		ws := newWorkspace(t)
		_, err := execute(t, newTestApp(&fakeStore{}, &fakeRunner{}), "run", "--skip-tests", "--config", ws.configPath)
		var missing *report.IntermediateFileMissingError
		assert.True(t, errors.As(err, &missing))
	})

	t.Run("no credentials", func(t *testing.T) {
		ws := newWorkspace(t)
		ws.writeReport(t, "2024-03-05 09-00-00", loginRow)
		a := newTestApp(&fakeStore{}, &fakeRunner{})
		a.credentials = func() confluence.CredentialProvider {
			return staticCredentials{err: confluence.ErrNoCredentials}
		}
		_, err := execute(t, a, "run", "--skip-tests", "--config", ws.configPath)
		assert.ErrorIs(t, err, confluence.ErrNoCredentials)
	})

	t.Run("explicit config missing", func(t *testing.T) {
		_, err := execute(t, newTestApp(&fakeStore{}, &fakeRunner{}), "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope.yaml")
	})

	t.Run("incomplete config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "resultsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("file:\n  name: smoke\n"), 0644))
		_, err := execute(t, newTestApp(&fakeStore{}, &fakeRunner{}), "run", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page.url")
	})
}

func TestReportCommand(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeReport(t, "2024-03-05 09-00-00", loginRow, brokenRow, skippedRow)

	out, err := execute(t, newTestApp(&fakeStore{}, &fakeRunner{}), "report", "--skip-tests", "--config", ws.configPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Login")
	assert.Contains(t, out, "Malformed descriptions")
	assert.Contains(t, out, "test_broken")
}

func TestReportCommandBuilds(t *testing.T) {
	ws := newWorkspace(t)
	runner := &fakeRunner{}

	out, err := execute(t, newTestApp(&fakeStore{}, runner), "report", "--config", ws.configPath)
	require.NoError(t, err)

	assert.Len(t, runner.calls, 2)
	assert.Contains(t, out, "Login")
	assert.NotContains(t, out, "Malformed descriptions")
}

func TestHistoryCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, defaultApp(), "history", "--config", ws.configPath)
	require.NoError(t, err)
	assert.Equal(t, "No exports recorded.\n", out)
	_, err = os.Stat(ws.ledger)
	assert.True(t, os.IsNotExist(err), "history does not create the ledger")

	store, err := ledger.NewStore(ws.ledger)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, &models.ExportSummary{
		RunID: "run-1", PageID: "42", PageTitle: "Results", Created: 3,
		ExportedAt: fixedNow().Add(-time.Hour),
	}))
	require.NoError(t, store.Record(ctx, &models.ExportSummary{
		RunID: "run-2", PageID: "42", PageTitle: "Results", Updated: 3, DryRun: true,
		ExportedAt: fixedNow(),
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, defaultApp(), "history", "--config", ws.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Results (42)")
	assert.Contains(t, out, "run-1")
	assert.NotContains(t, out, "run-2")

	out, err = execute(t, defaultApp(), "history", "--all", "--config", ws.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "2 EXPORTS")

	_, err = execute(t, defaultApp(), "history", "--limit", "-1", "--config", ws.configPath)
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ws := newWorkspace(t)
		ws.writeReport(t, "2024-03-05 09-00-00", loginRow, skippedRow)

		out, err := execute(t, defaultApp(), "validate", "--config", ws.configPath)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Configuration is valid")
		assert.Contains(t, out, "Read 2 row(s)")
		assert.Contains(t, out, "1 to export")
		assert.Contains(t, out, "Ready to export!")
	})

	t.Run("no report yet", func(t *testing.T) {
		ws := newWorkspace(t)
		out, err := execute(t, defaultApp(), "validate", "--config", ws.configPath)
		require.NoError(t, err)
		assert.Contains(t, out, "No report file yet")
	})

	t.Run("malformed description", func(t *testing.T) {
		ws := newWorkspace(t)
		ws.writeReport(t, "2024-03-05 09-00-00", loginRow, brokenRow)

		out, err := execute(t, defaultApp(), "validate", "--config", ws.configPath)
		require.Error(t, err)
		assert.Contains(t, out, "✗ test_broken")
		assert.Contains(t, out, "Found 1 validation error(s)!")
	})

	t.Run("incomplete config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "resultsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("file:\n  name: smoke\n"), 0644))

		out, err := execute(t, defaultApp(), "validate", "--config", path)
		require.Error(t, err)
		assert.Contains(t, out, "configuration: page.url cannot be empty")
	})
}
