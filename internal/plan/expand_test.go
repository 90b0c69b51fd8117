package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func buildModel(t *testing.T, workdir string, tasks ...*scenario.Task) *Graph {
	t.Helper()
	g, err := Build(context.Background(), &scenario.Model{Tasks: tasks}, Options{Workers: 1, Workdir: workdir})
	require.NoError(t, err)
	return g
}

func liveIDs(g *Graph) []string {
	var ids []string
	for _, n := range g.Ordered() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestTransitiveExpansionPropagates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "data_a.txt", "data_b.txt", "data_c.txt")

	g := buildModel(t, dir,
		&scenario.Task{
			ID: "extract", Kind: scenario.Manipulation,
			Algorithm: scenario.Algorithm{Impl: "tokenize"},
			Inputs:    []scenario.DataSource{file("data_*.txt")},
			Outputs:   []scenario.DataSource{feature("tok_*")},
		},
		&scenario.Task{
			ID: "train", Kind: scenario.Computation,
			Algorithm: scenario.Algorithm{Impl: "linecount"},
			Inputs:    []scenario.DataSource{feature("tok_*")},
			Outputs:   []scenario.DataSource{dataset("model_*")},
		},
	)

	// One clone per token for the template and for its pattern-dependent
	// successor; the templates themselves are gone.
	assert.ElementsMatch(t,
		[]string{"extract#0", "extract#1", "extract#2", "train#0", "train#1", "train#2"},
		liveIDs(g))

	e0 := g.Node("extract#0")
	require.NotNil(t, e0)
	assert.Equal(t, "data_a.txt", e0.Inputs[0].ID)
	assert.Equal(t, "tok_a", e0.Outputs[0].ID)

	t2 := g.Node("train#2")
	require.NotNil(t, t2)
	assert.Equal(t, "tok_c", t2.Inputs[0].ID)
	assert.Equal(t, "model_c", t2.Outputs[0].ID)

	// Clones are re-linked token-for-token, not all-to-all.
	assert.Equal(t, []string{"extract#0"}, g.Node("train#0").PredIDs())
	assert.Equal(t, []string{"train#1"}, g.Node("extract#1").SuccIDs())

	// Ready states: sources pending, dependents waiting.
	assert.Equal(t, scenario.Pending, e0.Status)
	assert.Equal(t, scenario.Waiting, t2.Status)
}

func TestTransitiveTokenSharedWithinNode(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "left_a.txt", "left_b.txt", "right_b.txt", "right_c.txt")

	g := buildModel(t, dir, &scenario.Task{
		ID: "pair", Kind: scenario.Manipulation,
		Algorithm: scenario.Algorithm{Impl: "copy"},
		Inputs:    []scenario.DataSource{file("left_*.txt"), file("right_*.txt")},
		Outputs:   []scenario.DataSource{file("out_*.txt")},
	})

	// One expansion value drives all uses: only the shared token survives.
	require.Equal(t, []string{"pair#0"}, liveIDs(g))
	p := g.Node("pair#0")
	assert.Equal(t, "left_b.txt", p.Inputs[0].ID)
	assert.Equal(t, "right_b.txt", p.Inputs[1].ID)
	assert.Equal(t, "out_b.txt", p.Outputs[0].ID)
}

func TestCartesianExpansion(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_m.txt", "a_n.txt", "b_x.txt", "b_y.txt", "b_z.txt")

	g := buildModel(t, dir, &scenario.Task{
		ID: "cross", Kind: scenario.Manipulation,
		Algorithm: scenario.Algorithm{Impl: "copy"},
		Inputs:    []scenario.DataSource{file("a_***.txt"), file("b_***.txt")},
		Outputs:   []scenario.DataSource{file("out_*.txt")},
	})

	require.Equal(t, 2*3, g.Len())
	c0 := g.Node("cross#0")
	require.NotNil(t, c0)
	assert.Equal(t, "a_m.txt", c0.Inputs[0].ID)
	assert.Equal(t, "b_x.txt", c0.Inputs[1].ID)
	assert.Equal(t, "out_m_x.txt", c0.Outputs[0].ID)

	c5 := g.Node("cross#5")
	require.NotNil(t, c5)
	assert.Equal(t, "a_n.txt", c5.Inputs[0].ID)
	assert.Equal(t, "b_z.txt", c5.Inputs[1].ID)
}

func TestLocalExpansionInPlace(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "raw_1.txt", "raw_2.txt", "raw_3.txt")

	g := buildModel(t, dir, &scenario.Task{
		ID: "gather", Kind: scenario.Manipulation,
		Algorithm: scenario.Algorithm{Impl: "copy"},
		Inputs:    []scenario.DataSource{file("raw_**.txt"), file("fixed.txt")},
		Outputs:   []scenario.DataSource{file("all.txt")},
	})

	// No replication: the node keeps its id, the pattern becomes the match list.
	require.Equal(t, []string{"gather"}, liveIDs(g))
	n := g.Node("gather")
	require.Len(t, n.Inputs, 4)
	assert.Equal(t, "raw_1.txt", n.Inputs[0].ID)
	assert.Equal(t, "fixed.txt", n.Inputs[3].ID)
}

func TestExpansionErrors(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x_a.txt", "y_b.txt")

	cases := []struct {
		name    string
		task    *scenario.Task
		wantErr string
	}{
		{
			name: "mixing local with transitive",
			task: &scenario.Task{
				ID: "mix", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{file("x_*.txt"), file("y_**.txt")},
				Outputs:   []scenario.DataSource{file("out_*.txt")},
			},
			wantErr: "cannot be mixed",
		},
		{
			name: "partially patterned outputs",
			task: &scenario.Task{
				ID: "partial", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{file("x_*.txt")},
				Outputs:   []scenario.DataSource{file("out_*.txt"), file("fixed.txt")},
			},
			wantErr: "all outputs must be patterned or none",
		},
		{
			name: "patterned outputs without input pattern",
			task: &scenario.Task{
				ID: "orphan", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{file("x_a.txt")},
				Outputs:   []scenario.DataSource{file("out_*.txt")},
			},
			wantErr: "no input pattern explains",
		},
		{
			name: "local pattern in outputs",
			task: &scenario.Task{
				ID: "badout", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{file("x_*.txt")},
				Outputs:   []scenario.DataSource{file("out_**.txt")},
			},
			wantErr: "outputs may only carry a single-star pattern",
		},
		{
			name: "wildcard only in directory part",
			task: &scenario.Task{
				ID: "dirstar", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{file("sub*/a.txt")},
				Outputs:   []scenario.DataSource{file("out_*.txt")},
			},
			wantErr: "confined to the directory part",
		},
		{
			name: "unmatchable feature pattern",
			task: &scenario.Task{
				ID: "ghost", Kind: scenario.Manipulation,
				Algorithm: scenario.Algorithm{Impl: "copy"},
				Inputs:    []scenario.DataSource{feature("pieces_*")},
				Outputs:   []scenario.DataSource{file("out_*.txt")},
			},
			wantErr: "neither a file nor produced by an expanded task",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(context.Background(), &scenario.Model{Tasks: []*scenario.Task{tc.task}},
				Options{Workers: 1, Workdir: dir})
			require.Error(t, err)
			assert.ErrorContains(t, err, "pattern specification error")
			assert.ErrorContains(t, err, tc.wantErr)
			assert.ErrorContains(t, err, tc.task.ID)
		})
	}
}
