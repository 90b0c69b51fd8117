package app

import (
	"github.com/specialistvlad/taskmill/internal/registry"
	"github.com/specialistvlad/taskmill/modules/copyfile"
	"github.com/specialistvlad/taskmill/modules/linecount"
	"github.com/specialistvlad/taskmill/modules/splitmerge"
	"github.com/specialistvlad/taskmill/modules/wordstats"
)

// coreModules lists the algorithm implementations registered by default.
// splitmerge must always be present: the parallelizer generates nodes that
// run its split and merge filters.
var coreModules = []registry.Module{
	copyfile.Module{},
	splitmerge.Module{},
	linecount.Module{},
	wordstats.Module{},
}
