package agent

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/corvid-labs/ago/pkg/types"
)

// RuntimeInfo mirrors the runtime.yaml pkg/control's materialize step
// writes alongside a resolved template (pkg/control/instance.go's
// instanceRuntime) — the worker's view of its own identity, the default
// model in effect at spawn time, and a point-in-time snapshot of its
// sibling instances for {{AGENT_NETWORK}} substitution.
type RuntimeInfo struct {
	InstanceID   string   `yaml:"instance_id"`
	TemplateName string   `yaml:"template_name"`
	CustomName   string   `yaml:"custom_name,omitempty"`
	DefaultModel string   `yaml:"default_model,omitempty"`
	AgentNetwork []string `yaml:"agent_network,omitempty"`
}

// LoadConfigDir reads template.yaml and runtime.yaml from dir, the
// per-instance directory pkg/control's `create`/`run` materialised
// (SPEC_FULL.md §6).
func LoadConfigDir(dir string) (types.Template, RuntimeInfo, error) {
	var tmpl types.Template
	tmplData, err := os.ReadFile(filepath.Join(dir, "template.yaml"))
	if err != nil {
		return tmpl, RuntimeInfo{}, types.NewError(types.KindBadTemplate, dir, err)
	}
	if err := yaml.Unmarshal(tmplData, &tmpl); err != nil {
		return tmpl, RuntimeInfo{}, types.NewError(types.KindBadTemplate, dir, err)
	}

	var rt RuntimeInfo
	rtData, err := os.ReadFile(filepath.Join(dir, "runtime.yaml"))
	if err != nil {
		return tmpl, rt, types.NewError(types.KindSpawnFailed, dir, err)
	}
	if err := yaml.Unmarshal(rtData, &rt); err != nil {
		return tmpl, rt, types.NewError(types.KindSpawnFailed, dir, err)
	}
	return tmpl, rt, nil
}
