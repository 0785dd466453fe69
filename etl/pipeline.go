package etl

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/kbukum/etlflow/dag"
)

// PipelineName is the name of the default graph.
const PipelineName = "etl_to_bq"

//go:embed pipelines/*.yaml
var pipelineFS embed.FS

// Pipelines returns every embedded pipeline keyed by name.
func Pipelines() dag.MapLoader {
	entries, err := pipelineFS.ReadDir("pipelines")
	if err != nil {
		panic(fmt.Sprintf("etl: embedded pipelines: %v", err))
	}
	out := make(dag.MapLoader, len(entries))
	for _, e := range entries {
		data, err := pipelineFS.ReadFile(path.Join("pipelines", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("etl: embedded pipeline %s: %v", e.Name(), err))
		}
		p, err := dag.LoadPipelineBytes(data)
		if err != nil {
			panic(fmt.Sprintf("etl: embedded pipeline %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = p
	}
	return out
}

// DefaultPipeline returns a fresh copy of the embedded etl_to_bq pipeline.
func DefaultPipeline() *dag.Pipeline {
	return Pipelines()[PipelineName]
}
