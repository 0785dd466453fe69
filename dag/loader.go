package dag

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	apperrors "github.com/kbukum/etlflow/errors"
)

// PipelineLoader loads pipeline definitions by name.
type PipelineLoader interface {
	Load(name string) (*Pipeline, error)
}

// FilePipelineLoader loads pipelines from YAML files on disk.
type FilePipelineLoader struct {
	dirs []string
}

// NewFilePipelineLoader creates a loader that searches dirs for
// <name>.yaml and <name>.yml, directly and in subdirectories.
func NewFilePipelineLoader(dirs ...string) *FilePipelineLoader {
	return &FilePipelineLoader{dirs: dirs}
}

// Load returns the first pipeline file named name. A file that exists but
// does not parse is an error, not a miss.
func (l *FilePipelineLoader) Load(name string) (*Pipeline, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			candidates := []string{filepath.Join(dir, name+ext)}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			candidates = append(candidates, matches...)

			for _, path := range candidates {
				p, err := LoadPipelineFile(path)
				if stderrors.Is(err, fs.ErrNotExist) {
					continue
				}
				return p, err
			}
		}
	}
	return nil, apperrors.NotFound("pipeline", name)
}

// LoadPipelineFile parses the pipeline at path.
func LoadPipelineFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := LoadPipelineBytes(data)
	if err != nil {
		return nil, fmt.Errorf("dag: parsing %s: %w", path, err)
	}
	return p, nil
}

// LoadPipelineBytes parses a pipeline definition. Unknown keys are rejected.
func LoadPipelineBytes(data []byte) (*Pipeline, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, apperrors.InvalidInput("name", "pipeline name is required")
	}
	for i, def := range p.Tasks {
		if def.Component == "" {
			return nil, apperrors.InvalidInput(fmt.Sprintf("tasks[%d].component", i), "is required")
		}
	}
	return &p, nil
}

// MapLoader serves pipelines held in memory, keyed by name.
type MapLoader map[string]*Pipeline

// Load returns the named pipeline.
func (m MapLoader) Load(name string) (*Pipeline, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return nil, apperrors.NotFound("pipeline", name)
}

// ChainLoader tries each loader in order and returns the first hit.
type ChainLoader []PipelineLoader

// Load returns the pipeline from the first loader that has it.
func (c ChainLoader) Load(name string) (*Pipeline, error) {
	for _, l := range c {
		p, err := l.Load(name)
		if err == nil {
			return p, nil
		}
		if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeNotFound {
			return nil, err
		}
	}
	return nil, apperrors.NotFound("pipeline", name)
}

// ResolvePipeline turns p into tasks, looking up every component in registry.
// Included pipelines are loaded through loader, which may be nil when p has no
// includes. Unknown components and include cycles fail before anything runs.
func ResolvePipeline(p *Pipeline, registry *Registry, loader PipelineLoader) ([]*Task, error) {
	stack := make(map[string]bool)
	seen := make(map[string]bool)
	var tasks []*Task
	if err := resolvePipeline(p, registry, loader, stack, seen, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func resolvePipeline(p *Pipeline, registry *Registry, loader PipelineLoader, stack, seen map[string]bool, out *[]*Task) error {
	if stack[p.Name] {
		return fmt.Errorf("dag: circular include of pipeline %q", p.Name)
	}
	stack[p.Name] = true
	defer delete(stack, p.Name)

	for _, name := range p.Includes {
		if loader == nil {
			return fmt.Errorf("dag: pipeline %q includes %q but no loader is configured", p.Name, name)
		}
		sub, err := loader.Load(name)
		if err != nil {
			return fmt.Errorf("dag: loading include %q: %w", name, err)
		}
		if err := resolvePipeline(sub, registry, loader, stack, seen, out); err != nil {
			return err
		}
	}

	for _, def := range p.Tasks {
		id := def.TaskID()
		if seen[id] {
			// Diamond includes: first definition wins.
			continue
		}
		fn, ok := registry.Get(def.Component)
		if !ok {
			return apperrors.NotFound("component", def.Component).
				WithDetail("pipeline", p.Name).
				WithDetail("task", id)
		}

		t := &Task{ID: id, Run: fn, DependsOn: def.DependsOn, Timeout: p.Defaults.Timeout}
		if p.Defaults.Retry != nil {
			t.Retry = *p.Defaults.Retry
		}
		if def.Retry != nil {
			t.Retry = *def.Retry
		}
		if def.Timeout > 0 {
			t.Timeout = def.Timeout
		}

		seen[id] = true
		*out = append(*out, t)
	}
	return nil
}

// BuildPipeline resolves p and builds the graph named after it.
func BuildPipeline(p *Pipeline, registry *Registry, loader PipelineLoader) (*Graph, error) {
	tasks, err := ResolvePipeline(p, registry, loader)
	if err != nil {
		return nil, err
	}
	return BuildNamed(p.Name, tasks...)
}
