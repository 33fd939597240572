package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corvid-labs/ago/pkg/types"
)

// LayerResolver reports the order in which discovery layers are tried and
// the accessors needed to build one. Satisfied by *pkg/config.Config.
type LayerResolver interface {
	TemplateResolutionOrder() []types.Layer
}

// Registry resolves and lists templates across the Local, Pulled, and
// Builtin layers. Dirs map each layer to the directory it is backed by;
// Local is backed by the working directory itself, per SPEC_FULL.md §6
// ("project-local templates (current working directory only)").
type Registry struct {
	cfg LayerResolver
	dir map[types.Layer]string
}

// New builds a Registry rooted at baseDir (the per-user `$HOME/.ago`
// directory). cwd is the current working directory, searched as the
// Local layer; no other directory backs Local.
func New(cfg LayerResolver, baseDir, cwd string) *Registry {
	return &Registry{
		cfg: cfg,
		dir: map[types.Layer]string{
			types.LayerLocal:   cwd,
			types.LayerPulled:  filepath.Join(baseDir, "registry", "templates", "pulled"),
			types.LayerBuiltin: filepath.Join(baseDir, "registry", "templates", "builtin"),
		},
	}
}

// Resolve searches layers in the config's declared order and returns the
// first exact filename match (`<name>.yaml` or `<name>.yml`).
func (r *Registry) Resolve(name string) (types.Template, error) {
	for _, layer := range r.order() {
		dir, ok := r.dir[layer]
		if !ok || dir == "" {
			continue
		}
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			tmpl, err := r.load(path, layer)
			if err == nil {
				return tmpl, nil
			}
			if !os.IsNotExist(err) {
				return types.Template{}, types.NewError(types.KindBadTemplate, path, err)
			}
		}
	}
	return types.Template{}, types.NewError(types.KindNoSuchTemplate, name, nil)
}

// List enumerates the templates visible across all layers, each tagged
// with the layer it was found in. Layers are walked in resolution order
// and a name is reported once, from the first layer that has it.
func (r *Registry) List() ([]types.TemplateSummary, error) {
	var out []types.TemplateSummary
	seen := make(map[string]bool)
	for _, layer := range r.order() {
		dir, ok := r.dir[layer]
		if !ok || dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, types.NewError(types.KindBadTemplate, dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := filepath.Ext(name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			tmpl, err := r.load(filepath.Join(dir, name), layer)
			if err != nil || seen[tmpl.Name] {
				continue
			}
			seen[tmpl.Name] = true
			out = append(out, types.TemplateSummary{
				Name:        tmpl.Name,
				Version:     tmpl.Version,
				Description: tmpl.Description,
				Layer:       layer,
			})
		}
	}
	return out, nil
}

// Load parses a single template file from an explicit path, outside the
// layered search — used by `create`/`run` once Resolve has already
// located the file, and by tests constructing a Template in isolation.
func (r *Registry) Load(path string) (types.Template, error) {
	return r.load(path, "")
}

// PulledDir returns the directory backing the Pulled layer — the `pull`
// control operation writes fetched templates here.
func (r *Registry) PulledDir() string {
	return r.dir[types.LayerPulled]
}

func (r *Registry) load(path string, layer types.Layer) (types.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Template{}, err
	}

	var doc templateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.Template{}, types.NewError(types.KindBadTemplate, path, err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return types.Template{}, types.NewError(types.KindBadTemplate, path, fmt.Errorf("template missing required field: name"))
	}
	if strings.TrimSpace(doc.Prompt) == "" {
		return types.Template{}, types.NewError(types.KindBadTemplate, path, fmt.Errorf("template missing required field: prompt"))
	}

	return types.Template{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Author:      doc.Author,
		Model:       doc.Model,
		Temperature: doc.Temperature,
		Tools:       doc.Tools,
		Prompt:      doc.Prompt,
		Metadata:    doc.Metadata,
		Layer:       layer,
	}, nil
}

func (r *Registry) order() []types.Layer {
	if r.cfg == nil {
		return []types.Layer{types.LayerLocal, types.LayerPulled, types.LayerBuiltin}
	}
	order := r.cfg.TemplateResolutionOrder()
	if len(order) == 0 {
		return []types.Layer{types.LayerLocal, types.LayerPulled, types.LayerBuiltin}
	}
	return order
}

// templateDocument is the on-disk schema (SPEC_FULL.md §6): name, version,
// description, author, model, temperature, tools, prompt, metadata.
type templateDocument struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Author      string            `yaml:"author"`
	Model       string            `yaml:"model"`
	Temperature float64           `yaml:"temperature"`
	Tools       []string          `yaml:"tools"`
	Prompt      string            `yaml:"prompt"`
	Metadata    map[string]string `yaml:"metadata"`
}
