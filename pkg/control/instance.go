package control

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/types"
)

// materialize resolves templateName, mints an instance ID (unless reserved
// already provides one, as `run` does after a prior `create`), and writes
// the template plus a runtime config snapshot into a fresh per-instance
// directory under <baseDir>/instances/<id>. It does not spawn anything —
// callers decide whether to hand the resulting (id, dir) to Manager.Spawn.
func (s *Server) materialize(templateName, customName, reserved string) (string, string, types.Template, error) {
	tmpl, err := s.templates.Resolve(templateName)
	if err != nil {
		return "", "", types.Template{}, err
	}

	id := reserved
	if id == "" {
		minted, err := identity.Mint(templateName, s.identity.Taken())
		if err != nil {
			return "", "", types.Template{}, types.NewError(types.KindSpawnFailed, templateName, err)
		}
		id = minted
	}

	dir := filepath.Join(s.baseDir, "instances", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", types.Template{}, types.NewError(types.KindSpawnFailed, dir, err)
	}

	if err := writeInstanceTemplate(dir, tmpl); err != nil {
		return "", "", types.Template{}, err
	}
	defaultModel := ""
	if s.cfg != nil {
		defaultModel = s.cfg.DefaultModel()
	}
	network := s.siblingInstanceIDs()
	if err := writeInstanceRuntime(dir, id, templateName, customName, defaultModel, network); err != nil {
		return "", "", types.Template{}, err
	}

	return id, dir, tmpl, nil
}

// siblingInstanceIDs snapshots every currently-live instance ID, for the
// new instance's {{AGENT_NETWORK}} substitution. It is a point-in-time
// snapshot, frozen at spawn — a worker has no channel back to the daemon
// to learn about instances spawned after it, matching the conversation
// log's own "no durable cross-restart state" stance (SPEC_FULL.md §9).
func (s *Server) siblingInstanceIDs() []string {
	instances := s.manager.ListInstances()
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.ID)
	}
	return ids
}

// instanceRuntime is the per-instance snapshot ago writes alongside the
// resolved template — the worker's view of its own identity and the
// default model in effect at spawn time, frozen so a later `config set`
// never changes an already-running instance's behavior out from under it.
type instanceRuntime struct {
	InstanceID   string   `yaml:"instance_id"`
	TemplateName string   `yaml:"template_name"`
	CustomName   string   `yaml:"custom_name,omitempty"`
	DefaultModel string   `yaml:"default_model,omitempty"`
	AgentNetwork []string `yaml:"agent_network,omitempty"`
}

func writeInstanceTemplate(dir string, tmpl types.Template) error {
	data, err := yaml.Marshal(tmpl)
	if err != nil {
		return types.NewError(types.KindBadTemplate, tmpl.Name, err)
	}
	path := filepath.Join(dir, "template.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.NewError(types.KindSpawnFailed, path, err)
	}
	return nil
}

func writeInstanceRuntime(dir, id, templateName, customName, defaultModel string, agentNetwork []string) error {
	rt := instanceRuntime{
		InstanceID:   id,
		TemplateName: templateName,
		CustomName:   customName,
		DefaultModel: defaultModel,
		AgentNetwork: agentNetwork,
	}
	data, err := yaml.Marshal(rt)
	if err != nil {
		return types.NewError(types.KindSpawnFailed, id, err)
	}
	path := filepath.Join(dir, "runtime.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.NewError(types.KindSpawnFailed, path, err)
	}
	return nil
}
