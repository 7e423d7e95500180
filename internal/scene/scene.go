// Package scene preloads entities from a YAML scene file at boot.
// Preloaded entities go through the normal runtime operations, so they
// obey every validation and cascade rule a remote client would.
package scene

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/geserver/server/internal/component"
	"github.com/geserver/server/internal/runtime"
)

// Entry describes one entity to preload.
type Entry struct {
	Name        string         `yaml:"name"`
	TargetScene string         `yaml:"targetScene"`
	Tags        []string       `yaml:"tags"`
	Transform   *TransformSpec `yaml:"transform"`
	Renderer    *RendererSpec  `yaml:"renderer"`
	Script      *ScriptSpec    `yaml:"script"`
}

type TransformSpec struct {
	Position []float64 `yaml:"position"`
	Scale    []float64 `yaml:"scale"`
}

type RendererSpec struct {
	FilePath string `yaml:"filePath"`
}

type ScriptSpec struct {
	ScriptPath string `yaml:"scriptPath"`
}

type sceneFile struct {
	Entities []Entry `yaml:"entities"`
}

// Load reads a scene file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	var sf sceneFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	return sf.Entities, nil
}

// Apply creates the entries in the runtime and returns the number of
// entities created. The first failing entry aborts the preload.
func Apply(rt *runtime.Runtime, entries []Entry, log *zap.Logger) (int, error) {
	for i, e := range entries {
		id, err := rt.CreateEntity(e.Name, e.TargetScene, e.Tags)
		if err != nil {
			return i, fmt.Errorf("entity %d (%s): %w", i, e.Name, err)
		}
		if e.Transform != nil {
			payload := map[string]any{
				"position": floatsToAny(e.Transform.Position),
				"scale":    floatsToAny(e.Transform.Scale),
			}
			if _, err := rt.AttachComponent(id, component.KindTransform, payload); err != nil {
				return i, fmt.Errorf("entity %d (%s) transform: %w", i, e.Name, err)
			}
		}
		if e.Renderer != nil {
			payload := map[string]any{"filePath": e.Renderer.FilePath}
			if _, err := rt.AttachComponent(id, component.KindRenderer, payload); err != nil {
				return i, fmt.Errorf("entity %d (%s) renderer: %w", i, e.Name, err)
			}
		}
		if e.Script != nil {
			payload := map[string]any{"scriptPath": e.Script.ScriptPath}
			if _, err := rt.AttachComponent(id, component.KindScript, payload); err != nil {
				return i, fmt.Errorf("entity %d (%s) script: %w", i, e.Name, err)
			}
		}
		log.Debug("scene entity preloaded", zap.Int64("entity", int64(id)), zap.String("name", e.Name))
	}
	return len(entries), nil
}

func floatsToAny(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
