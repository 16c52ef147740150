package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/security"
	"github.com/banshee-data/platetemp/internal/testutil"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

// runCLI executes args and returns stdout and stderr.
func runCLI(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	var out, errOut bytes.Buffer
	root := New(&out, &errOut).RootCommand()
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cli.db")
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, 0},
		{"context_canceled", context.Canceled, ExitInterrupted},
		{"estimate_cancelled", fmt.Errorf("estimate: %w", plate.ErrCancelled), ExitInterrupted},
		{"invalid_point", plate.ErrInvalidQueryPoint, 1},
		{"other", errors.New("boom"), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.expected {
				t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.expected)
			}
		})
	}
}

func TestEstimateDefaults(t *testing.T) {
	out, _, err := runCLI(t, context.Background(), "", "estimate", "--seed", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "T(5, 5) = ")
	assert.Contains(t, out, "plate 15x10, edges bottom=10 right=5 left=5 top=20")
	assert.Contains(t, out, "1000 trials, seed 3")
	assert.Contains(t, out, "hits: bottom=")
}

func TestEstimateJSON(t *testing.T) {
	out, _, err := runCLI(t, context.Background(), "",
		"estimate", "--json", "--seed", "3", "--trials", "1000", "--workers", "2")
	require.NoError(t, err)

	var rec db.EstimateRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.InDelta(t, testutil.AnalyticCentreLeft, rec.Estimate.Temperature, 1.0)
	assert.Equal(t, 1000, rec.Estimate.Trials)
	assert.Equal(t, uint64(3), rec.Estimate.Seed)
	assert.Equal(t, 0.05, rec.Epsilon)
}

func TestEstimateSave(t *testing.T) {
	dbPath := tempDB(t)
	_, _, err := runCLI(t, context.Background(), "",
		"estimate", "--db", dbPath, "--save", "--trials", "50",
		"--width", "2", "--height", "2", "--temps", "1,1,1,1", "--x", "1", "--y", "1")
	require.NoError(t, err)

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	recs, err := db.NewEstimateStore(database.DB, nil).List(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1.0, recs[0].Estimate.Temperature)
	assert.Equal(t, 2.0, recs[0].Domain.Width)
}

func TestEstimateErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want error
	}{
		{"outside_plate", []string{"--x", "20"}, plate.ErrInvalidQueryPoint},
		{"zero_trials", []string{"--trials", "0"}, plate.ErrInvalidOptions},
		{"three_temps", []string{"--temps", "1,2,3"}, plate.ErrInvalidDomain},
		{"negative_width", []string{"--width", "-1"}, plate.ErrInvalidDomain},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, context.Background(), "", append([]string{"estimate"}, tc.args...)...)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, ExitCode(err))
		})
	}
}

func TestEstimateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := runCLI(t, ctx, "", "estimate")
	require.ErrorIs(t, err, plate.ErrCancelled)
	assert.Equal(t, ExitInterrupted, ExitCode(err))
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.yaml")
	body := "width: 2\nheight: 2\ntemperatures: [30, 30, 30, 30]\ntrials: 200\nseed: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	out, _, err := runCLI(t, context.Background(), "", "--config", path, "estimate", "--json", "--x", "1", "--y", "1")
	require.NoError(t, err)
	var rec db.EstimateRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 200, rec.Estimate.Trials)
	assert.Equal(t, 30.0, rec.Estimate.Temperature)

	out, _, err = runCLI(t, context.Background(), "", "--config", path, "estimate", "--json", "--x", "1", "--y", "1", "--trials", "10")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 10, rec.Estimate.Trials, "flags override the config file")
}

func TestConfigFileErrors(t *testing.T) {
	_, _, err := runCLI(t, context.Background(), "", "--config", filepath.Join(t.TempDir(), "absent.json"), "estimate")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "shouty"}`), 0644))
	_, _, err = runCLI(t, context.Background(), "", "--config", path, "estimate")
	assert.ErrorContains(t, err, "log level")
}

func TestVerboseLogging(t *testing.T) {
	_, stderr, err := runCLI(t, context.Background(), "", "-v", "estimate", "--trials", "10")
	require.NoError(t, err)
	assert.Contains(t, stderr, "estimating")
}

func TestFieldRunsLifecycle(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	pngPath := filepath.Join(dir, "plate.png")
	htmlPath := filepath.Join(dir, "plate.html")
	csvPath := filepath.Join(dir, "plate.csv")

	out, _, err := runCLI(t, context.Background(), "",
		"field", "--db", dbPath, "--step", "5", "--trials", "20", "--seed", "1",
		"--png", pngPath, "--html", htmlPath, "--csv", csvPath, "--save", "--label", "coarse")
	require.NoError(t, err)
	assert.Contains(t, out, "12 points: min ")

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "run "); ok {
			runID = id
		}
	}
	require.NotEmpty(t, runID)

	f, err := os.Open(pngPath)
	require.NoError(t, err)
	_, err = png.Decode(f)
	f.Close()
	assert.NoError(t, err)

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "coarse")

	csv, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(csv)), "\n"), 13)

	out, _, err = runCLI(t, context.Background(), "", "runs", "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "coarse")
	assert.Contains(t, out, "4x3")

	out, _, err = runCLI(t, context.Background(), "", "runs", "show", runID, "--db", dbPath, "--field")
	require.NoError(t, err)
	var shown struct {
		Run     db.Run         `json:"run"`
		Summary map[string]any `json:"summary"`
		Field   map[string]any `json:"field"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, db.RunComplete, shown.Run.Status)
	assert.Equal(t, 12.0, shown.Summary["points"])
	assert.NotNil(t, shown.Field["values"])

	out, _, err = runCLI(t, context.Background(), "", "runs", "delete", runID, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+runID)

	_, _, err = runCLI(t, context.Background(), "", "runs", "show", runID, "--db", dbPath)
	assert.ErrorIs(t, err, db.ErrRunNotFound)
}

func TestFieldCSVToStdout(t *testing.T) {
	out, _, err := runCLI(t, context.Background(), "",
		"field", "--xs", "5,10", "--ys", "5", "--trials", "20", "--csv", "-")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "x,y,temperature,stderr", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "5,5,"), lines[1])
}

func TestFieldErrors(t *testing.T) {
	_, _, err := runCLI(t, context.Background(), "", "field", "--xs", "1,2")
	assert.ErrorContains(t, err, "--xs and --ys")

	_, _, err = runCLI(t, context.Background(), "", "field", "--xs", "1,20", "--ys", "1")
	assert.ErrorIs(t, err, plate.ErrInvalidQueryPoint)

	_, _, err = runCLI(t, context.Background(), "", "field", "--step", "0")
	assert.Error(t, err)

	_, _, err = runCLI(t, context.Background(), "", "field", "--step", "5", "-n", "10",
		"--csv", "/proc/field.csv")
	assert.ErrorIs(t, err, security.ErrPathEscapes)
}

func TestFieldCancelledRecordsRun(t *testing.T) {
	dbPath := tempDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := runCLI(t, ctx, "", "field", "--db", dbPath, "--save", "--step", "5")
	require.ErrorIs(t, err, plate.ErrCancelled)

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	list, err := db.NewRunStore(database.DB, nil).ListRuns(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, db.RunCancelled, list[0].Status)
}

func TestMigrateCommands(t *testing.T) {
	dbPath := tempDB(t)
	ctx := context.Background()

	out, _, err := runCLI(t, ctx, "", "migrate", "status", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "Latest version: 2")
	assert.Contains(t, out, "2 migration(s) pending")

	out, _, err = runCLI(t, ctx, "", "migrate", "up", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2 (dirty: false)")

	out, _, err = runCLI(t, ctx, "", "migrate", "down", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")

	out, _, err = runCLI(t, ctx, "", "migrate", "to", "2", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2")

	out, _, err = runCLI(t, ctx, "n\n", "migrate", "force", "1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	out, _, err = runCLI(t, ctx, "y\n", "migrate", "force", "1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")

	out, _, err = runCLI(t, ctx, "", "migrate", "force", "2", "--yes", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2")

	_, _, err = runCLI(t, ctx, "", "migrate", "to", "two", "--db", dbPath)
	assert.ErrorContains(t, err, "invalid version")
}

func TestVersionFlag(t *testing.T) {
	out, _, err := runCLI(t, context.Background(), "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "platetemp dev")
}

// lockedBuffer lets the progress goroutine and the test share a buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartProgress(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	var logs lockedBuffer
	logger := charmlog.New(&logs)

	var p sweepProgress
	stop := startProgress(clock, logger, &p, time.Second)

	clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.NotContains(t, logs.String(), "sweeping", "nothing is logged before the first point")

	p.update(3, 12)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "pct=25")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, clock.Tickers())
	stop()
	stop()
	assert.Zero(t, clock.Tickers())
}
