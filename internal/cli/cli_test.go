package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{"scenario.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.NotNil(t, config)

	assert.Equal(t, "scenario.hcl", config.ScenarioPath)
	assert.Equal(t, ".", config.Workdir)
	assert.Equal(t, 1, config.Threads)
	assert.Equal(t, 1, config.Instances)
	assert.Equal(t, 2, config.Verbosity)
	assert.Empty(t, config.Reset)
	assert.Equal(t, 1, config.RetrieveCount)
	assert.False(t, config.ParseOnly)
	assert.Equal(t, 1, config.WorkerBudget())
}

func TestParseAllFlags(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{
		"-threads", "4",
		"-instances", "3",
		"-verbosity", "0",
		"-workdir", "/data",
		"-reset", "learn, report ,!",
		"-retrieve_count", "5",
		"-parse_only",
		"run.hcl",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "run.hcl", config.ScenarioPath)
	assert.Equal(t, "/data", config.Workdir)
	assert.Equal(t, 4, config.Threads)
	assert.Equal(t, 3, config.Instances)
	assert.Equal(t, 0, config.Verbosity)
	assert.Equal(t, []string{"learn", "report", "!"}, config.Reset)
	assert.Equal(t, 5, config.RetrieveCount)
	assert.True(t, config.ParseOnly)
	assert.Equal(t, 12, config.WorkerBudget())
}

func TestParseShorthandFlags(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{"-t", "2", "-i", "2", "-v", "4", "-d", "/tmp", "-r", "#", "-c", "3", "-p", "run.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, 2, config.Threads)
	assert.Equal(t, 2, config.Instances)
	assert.Equal(t, 4, config.Verbosity)
	assert.Equal(t, "/tmp", config.Workdir)
	assert.Equal(t, []string{"#"}, config.Reset)
	assert.Equal(t, 3, config.RetrieveCount)
	assert.True(t, config.ParseOnly)
}

func TestParseNoArgsPrintsUsageAndFails(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse(nil, &out)
	assert.Nil(t, config)
	assert.False(t, exit)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "SCENARIO")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, exitErr.Message, "scenario path is required")
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"two scenarios", []string{"a.hcl", "b.hcl"}, "expected one scenario path"},
		{"zero threads", []string{"-threads", "0", "a.hcl"}, "threads must be at least 1"},
		{"zero instances", []string{"-instances", "0", "a.hcl"}, "instances must be at least 1"},
		{"verbosity out of range", []string{"-verbosity", "9", "a.hcl"}, "verbosity must be between 0 and 4"},
		{"zero retrieve count", []string{"-retrieve_count", "0", "a.hcl"}, "retrieve_count must be at least 1"},
		{"unknown flag", []string{"-bogus", "a.hcl"}, "flag provided but not defined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			config, exit, err := Parse(tc.args, &out)
			assert.Nil(t, config)
			assert.False(t, exit)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}

func TestParseHelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, config)
}
