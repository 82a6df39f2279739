package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChuLiYu/procsim/internal/product"
	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// scenario is a 100s orbit with 20s slices and 5s frames
const scenario = `
mission: SIM
output_dir: out
log_level: error

worker:
  worker_count: 2
  task_timeout: 10s

orbit:
  period: 100.0
  extrapolate: true
  first_orbit: 10
  anx:
    - "2024-03-01T00:00:00.000000Z"

slicing:
  product_type: RAW___0S
  spacing: 20.0
  overlap_start: 2.0
  overlap_end: 2.0
  min_duration: 5.0

framing:
  product_type: RAW___1F
  spacing: 5.0
  overlap_end: 1.0
  min_duration: 1.0

payload:
  size_bytes: 256

journal:
  path: out/journal.log

inventory:
  path: out/inventory.db
`

const jobOrderTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Ipf_Job_Order>
  <List_of_Ipf_Procs>
    <Ipf_Proc>
      <Task_Name>L0_Slicer</Task_Name>
      <Sensing_Time>
        <Start>2024-03-01T00:00:18.000000</Start>
        <Stop>2024-03-01T00:01:02.000000</Stop>
      </Sensing_Time>
      <List_of_Outputs>
        <Output><File_Type>RAW___0S</File_Type><File_Dir>%[1]s</File_Dir><Baseline>1</Baseline></Output>
      </List_of_Outputs>
    </Ipf_Proc>
    <Ipf_Proc>
      <Task_Name>L1_Framer</Task_Name>
      <List_of_Inputs>
        <Input><File_Type>RAW___0S</File_Type><File_Name>%[1]s</File_Name></Input>
      </List_of_Inputs>
      <List_of_Outputs>
        <Output><File_Type>RAW___1F</File_Type><File_Dir>%[2]s</File_Dir><Baseline>1</Baseline></Output>
      </List_of_Outputs>
    </Ipf_Proc>
  </List_of_Ipf_Procs>
</Ipf_Job_Order>
`

func writeScenario(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(scenario), 0644))
	return dir, configPath
}

func writeJobOrder(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "joborder.xml")
	content := fmt.Sprintf(jobOrderTemplate, filepath.Join(dir, "out", "l0"), filepath.Join(dir, "out", "l1"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the CLI with args and returns what it wrote to stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ============================================================================
// Command Tree
// ============================================================================

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "procsim", cmd.Use)
	assert.Equal(t, Version, cmd.Version)

	commandNames := make(map[string]bool)
	for _, c := range cmd.Commands() {
		commandNames[c.Name()] = true
	}
	for _, name := range []string{"run", "segments", "locate", "classify", "inventory", "status"} {
		assert.True(t, commandNames[name], "Should have %q command", name)
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag, "Should have --config flag")
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestBuildRunCommand(t *testing.T) {
	a := &app{}
	cmd := a.buildRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE, "RunE function should be set")

	jobFlag := cmd.Flags().Lookup("job-order")
	require.NotNil(t, jobFlag, "Should have --job-order flag")
	assert.Equal(t, "j", jobFlag.Shorthand)
	assert.NotNil(t, cmd.Flags().Lookup("resume"))
}

func TestBuildInventoryCommand(t *testing.T) {
	a := &app{}
	cmd := a.buildInventoryCommand()

	require.Len(t, cmd.Commands(), 1)
	list := cmd.Commands()[0]
	assert.Equal(t, "list", list.Use)
	for _, name := range []string{"type", "run", "limit"} {
		assert.NotNil(t, list.Flags().Lookup(name), "list should have --%s", name)
	}
}

// ============================================================================
// Logging
// ============================================================================

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug("Product generated", "product", "S3A_X")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "Product generated", record["msg"])
	assert.Equal(t, "S3A_X", record["product"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = newLogger(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

// ============================================================================
// Grid Commands
// ============================================================================

func TestSegmentsCommand_JSON(t *testing.T) {
	_, cfg := writeScenario(t)

	out, err := execute(t, "-c", cfg, "segments",
		"--start", "2024-03-01T00:00:18Z", "--stop", "2024-03-01T00:01:02Z", "--format", "json")
	require.NoError(t, err)

	var segs []types.Segment
	require.NoError(t, json.Unmarshal([]byte(out), &segs))
	require.Len(t, segs, 2)
	assert.Equal(t, 2, segs[0].Cell.Index)
	assert.Equal(t, 3, segs[1].Cell.Index)
	assert.Equal(t, types.StatusNominal, segs[0].Status)
}

func TestSegmentsCommand_Table(t *testing.T) {
	_, cfg := writeScenario(t)

	out, err := execute(t, "-c", cfg, "segments", "--level", "frame",
		"--start", "2024-03-01T00:00:20Z", "--stop", "2024-03-01T00:00:30Z")
	require.NoError(t, err)

	assert.Contains(t, out, "VALIDITY START")
	assert.Contains(t, out, "2024-03-01T00:00:20.000000Z")
	assert.Contains(t, out, "NOMINAL")
	assert.Contains(t, out, "segments")
}

func TestSegmentsCommand_Errors(t *testing.T) {
	_, cfg := writeScenario(t)

	_, err := execute(t, "-c", cfg, "segments", "--stop", "2024-03-01T00:01:02Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start is required")

	_, err = execute(t, "-c", cfg, "segments", "--level", "orbit",
		"--start", "2024-03-01T00:00:18Z", "--stop", "2024-03-01T00:01:02Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")

	_, err = execute(t, "-c", cfg, "segments", "--format", "csv",
		"--start", "2024-03-01T00:00:18Z", "--stop", "2024-03-01T00:01:02Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLocateCommand(t *testing.T) {
	_, cfg := writeScenario(t)

	out, err := execute(t, "-c", cfg, "locate", "--at", "2024-03-01T00:00:25Z")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 5")
	assert.Contains(t, out, "2024-03-01T00:00:20.000000Z")
	assert.Contains(t, out, "2024-03-01T00:00:40.000000Z")

	// second orbit, first cell
	out, err = execute(t, "-c", cfg, "locate", "--at", "2024-03-01T00:01:45Z")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 5")
	assert.Contains(t, out, "11")
	assert.Contains(t, out, "2024-03-01T00:01:40.000000Z")
}

func TestClassifyCommand(t *testing.T) {
	_, cfg := writeScenario(t)

	tests := []struct {
		start, stop string
		want        string
	}{
		{"2024-03-01T00:00:20Z", "2024-03-01T00:00:40Z", "aligned"},
		{"2024-03-01T00:00:18Z", "2024-03-01T00:00:42Z", "aligned-with-overlap"},
		{"2024-03-01T00:00:21Z", "2024-03-01T00:00:39Z", "derived"},
	}
	for _, tt := range tests {
		out, err := execute(t, "-c", cfg, "classify", "--start", tt.start, "--stop", tt.stop)
		require.NoError(t, err)

		fields := strings.Fields(out)
		require.GreaterOrEqual(t, len(fields), 2)
		assert.Equal(t, tt.want, fields[1], "alignment of [%s, %s]", tt.start, tt.stop)
		assert.Contains(t, out, "2024-03-01T00:00:20.000000Z")
	}
}

func TestConfigErrors(t *testing.T) {
	_, err := execute(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")

	_, cfg := writeScenario(t)
	_, err = execute(t, "-c", cfg, "--log-format", "xml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

// ============================================================================
// Run, Inventory and Status
// ============================================================================

func TestStatus_NoRun(t *testing.T) {
	_, cfg := writeScenario(t)

	out, err := execute(t, "-c", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "SIM")
	assert.Contains(t, out, "no run recorded")
}

func TestRun_EndToEnd(t *testing.T) {
	dir, cfg := writeScenario(t)
	jobOrder := writeJobOrder(t, dir)

	out, err := execute(t, "-c", cfg, "run", "-j", jobOrder)
	require.NoError(t, err)
	assert.Contains(t, out, "L0_Slicer")
	assert.Contains(t, out, "L1_Framer")
	assert.Contains(t, out, "generated 11, skipped 0, failed 0")

	l1, err := product.Scan(filepath.Join(dir, "out", "l1"))
	require.NoError(t, err)
	assert.Len(t, l1, 9)
	assert.FileExists(t, filepath.Join(dir, "out", "run.json"))

	// resuming writes nothing new
	out, err = execute(t, "-c", cfg, "run", "-j", jobOrder, "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "generated 0, skipped 11, failed 0")

	out, err = execute(t, "-c", cfg, "inventory", "list", "--type", "RAW___1F")
	require.NoError(t, err)
	assert.Contains(t, out, "PARENT")
	assert.Contains(t, out, "PARTIAL")
	assert.Contains(t, out, "9 products, 2.3 KiB")

	out, err = execute(t, "-c", cfg, "inventory", "list", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 products")

	out, err = execute(t, "-c", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "11 products")
	assert.Contains(t, out, "generated 0, skipped 11, failed 0")
	assert.NotContains(t, out, "no run recorded")
}

func TestRun_MissingJobOrder(t *testing.T) {
	_, cfg := writeScenario(t)

	_, err := execute(t, "-c", cfg, "run", "-j", filepath.Join(t.TempDir(), "none.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open job order")
}
