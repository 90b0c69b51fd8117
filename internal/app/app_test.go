package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eScenario = `
manipulation "gather" {
  filter {
    impl = "copy"
  }
  input {
    file = ["raw_**.txt"]
  }
  output {
    file = ["combined.txt"]
  }
}

evaluation "stats" {
  metric {
    impl   = "wordstats"
    params = "top=2"
  }
  input {
    file = ["combined.txt"]
  }
  output {
    file = ["report.txt"]
  }
}
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func e2eConfig(t *testing.T, dir, scenarioPath string) *Config {
	t.Helper()
	config, err := NewConfig(Config{
		ScenarioPath:  scenarioPath,
		Workdir:       dir,
		Threads:       1,
		Instances:     1,
		Verbosity:     0,
		RetrieveCount: 1,
	})
	require.NoError(t, err)
	return config
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", e2eScenario)
	writeFixture(t, dir, "raw_1.txt", "alpha beta\n")
	writeFixture(t, dir, "raw_2.txt", "alpha gamma\n")

	var out bytes.Buffer
	a := NewApp(&out, e2eConfig(t, dir, scenarioPath))
	require.NoError(t, a.Run(context.Background()))

	combined, err := os.ReadFile(filepath.Join(dir, "combined.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha beta\nalpha gamma\n", string(combined))

	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha 2\nbeta 1\n", string(report))

	// The plan file persists next to the scenario for cooperating processes.
	_, err = os.Stat(scenarioPath + ".todo")
	assert.NoError(t, err)
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", e2eScenario)
	writeFixture(t, dir, "raw_1.txt", "alpha beta\n")

	var out bytes.Buffer
	require.NoError(t, NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background()))

	// A rerun without a reset finds the plan exhausted and changes nothing,
	// even though the data on disk moved on.
	writeFixture(t, dir, "raw_1.txt", "delta\n")
	require.NoError(t, NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background()))
	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha 2\nbeta 1\n", string(report))
}

func TestRunResetAllReruns(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", e2eScenario)
	writeFixture(t, dir, "raw_1.txt", "alpha beta\n")

	var out bytes.Buffer
	require.NoError(t, NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background()))

	writeFixture(t, dir, "raw_1.txt", "delta delta\n")
	config := e2eConfig(t, dir, scenarioPath)
	config.Reset = []string{"!"}
	require.NoError(t, NewApp(&out, config).Run(context.Background()))

	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "delta 2\n", string(report))
}

func TestRunConsumesResetFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", e2eScenario)
	writeFixture(t, dir, "raw_1.txt", "alpha beta\n")

	var out bytes.Buffer
	require.NoError(t, NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background()))

	// An operator drops reset instructions next to the plan; the next run
	// applies them without any --reset flag and removes the file.
	writeFixture(t, dir, "raw_1.txt", "delta delta\n")
	resetFile := writeFixture(t, dir, "scenario.hcl.reset", "!\n")
	require.NoError(t, NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background()))

	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "delta 2\n", string(report))
	_, err = os.Stat(resetFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunParseOnly(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", e2eScenario)
	writeFixture(t, dir, "raw_1.txt", "alpha\n")

	var out bytes.Buffer
	config := e2eConfig(t, dir, scenarioPath)
	config.ParseOnly = true
	require.NoError(t, NewApp(&out, config).Run(context.Background()))

	assert.Contains(t, out.String(), "is valid: 2 tasks, 2 planned nodes")

	// Validation neither executes tasks nor persists a plan.
	_, err := os.Stat(filepath.Join(dir, "combined.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(scenarioPath + ".todo")
	assert.True(t, os.IsNotExist(err))
}

func TestRunRejectsBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFixture(t, dir, "scenario.hcl", `manipulation "broken" {}`)

	var out bytes.Buffer
	err := NewApp(&out, e2eConfig(t, dir, scenarioPath)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "loading scenario")
}
