package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

func TestParallelizeSplitsSharedSource(t *testing.T) {
	g, err := Build(context.Background(), &scenario.Model{Tasks: []*scenario.Task{
		{
			ID: "prep", Kind: scenario.Manipulation,
			Algorithm: scenario.Algorithm{Impl: "copy"},
			Inputs:    []scenario.DataSource{file("corpus.txt")},
			Outputs:   []scenario.DataSource{dataset("corpus")},
		},
		{
			ID: "learn", Kind: scenario.Computation,
			Algorithm: scenario.Algorithm{Impl: "linecount", Parallel: true},
			Train:     []scenario.DataSource{dataset("corpus")},
			Outputs:   []scenario.DataSource{dataset("model")},
		},
		{
			ID: "report", Kind: scenario.Evaluation,
			Algorithm: scenario.Algorithm{Impl: "wordstats"},
			Inputs:    []scenario.DataSource{dataset("model")},
			Outputs:   []scenario.DataSource{file("report.txt")},
		},
	}}, Options{Workers: 3, Workdir: "."})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"prep", "learn.split", "learn#0", "learn#1", "learn#2", "learn.merge", "report"},
		liveIDs(g))

	fanOut := g.Node("learn.split")
	require.NotNil(t, fanOut)
	assert.Equal(t, scenario.Manipulation, fanOut.Kind)
	assert.Equal(t, "split", fanOut.Algorithm.Impl)
	assert.Equal(t, []scenario.DataSource{dataset("corpus")}, fanOut.Inputs)
	assert.Equal(t,
		[]scenario.DataSource{dataset("corpus.part0"), dataset("corpus.part1"), dataset("corpus.part2")},
		fanOut.Outputs)

	c1 := g.Node("learn#1")
	require.NotNil(t, c1)
	assert.Equal(t, []scenario.DataSource{dataset("corpus.part1")}, c1.Train)
	assert.Equal(t, []scenario.DataSource{dataset("model.part1")}, c1.Outputs)
	assert.Equal(t, "linecount", c1.Algorithm.Impl)
	assert.Equal(t, []string{"learn.split"}, c1.PredIDs())
	assert.Equal(t, []string{"learn.merge"}, c1.SuccIDs())

	fanIn := g.Node("learn.merge")
	require.NotNil(t, fanIn)
	assert.Equal(t, "merge", fanIn.Algorithm.Impl)
	assert.Len(t, fanIn.Inputs, 3)
	assert.Equal(t, []scenario.DataSource{dataset("model")}, fanIn.Outputs)

	// Downstream consumers keep their declared edge through the fan-in.
	assert.Equal(t, []string{"learn.merge"}, g.Node("report").PredIDs())
	assert.Equal(t, scenario.Waiting, g.Node("report").Status)
}

func TestParallelizeDirectPartition(t *testing.T) {
	g, err := Build(context.Background(), &scenario.Model{Tasks: []*scenario.Task{{
		ID: "learn", Kind: scenario.Computation,
		Algorithm: scenario.Algorithm{Impl: "linecount", Parallel: true},
		Train:     []scenario.DataSource{file("t0.txt"), file("t1.txt")},
		Devel:     []scenario.DataSource{file("d0.txt"), file("d1.txt")},
		Outputs:   []scenario.DataSource{dataset("model")},
	}}}, Options{Workers: 2, Workdir: "."})
	require.NoError(t, err)

	// Declared entries already match the budget: no fan-out is generated.
	assert.ElementsMatch(t, []string{"learn#0", "learn#1", "learn.merge"}, liveIDs(g))

	c0 := g.Node("learn#0")
	require.NotNil(t, c0)
	assert.Equal(t, []scenario.DataSource{file("t0.txt")}, c0.Train)
	assert.Equal(t, []scenario.DataSource{file("d0.txt")}, c0.Devel)
	assert.Equal(t, []scenario.DataSource{dataset("model.part0")}, c0.Outputs)
	assert.Empty(t, c0.PredIDs())
	assert.Equal(t, scenario.Pending, c0.Status)
}

func TestParallelizeCardinalityMismatch(t *testing.T) {
	_, err := Build(context.Background(), &scenario.Model{Tasks: []*scenario.Task{{
		ID: "learn", Kind: scenario.Computation,
		Algorithm: scenario.Algorithm{Impl: "linecount", Parallel: true},
		Train:     []scenario.DataSource{file("t0.txt"), file("t1.txt")},
		Outputs:   []scenario.DataSource{dataset("model")},
	}}}, Options{Workers: 3, Workdir: "."})
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot partition 2 training sources across 3 workers")
}

func TestParallelizeSkippedForSingleWorker(t *testing.T) {
	g, err := Build(context.Background(), &scenario.Model{Tasks: []*scenario.Task{{
		ID: "learn", Kind: scenario.Computation,
		Algorithm: scenario.Algorithm{Impl: "linecount", Parallel: true},
		Train:     []scenario.DataSource{file("t.txt")},
		Outputs:   []scenario.DataSource{dataset("model")},
	}}}, Options{Workers: 1, Workdir: "."})
	require.NoError(t, err)
	assert.Equal(t, []string{"learn"}, liveIDs(g))
}
