package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/corvid-labs/ago/pkg/router"
	"github.com/corvid-labs/ago/pkg/types"
)

// RegistryKind identifies how a configured template registry entry is
// fetched. Only "builtin" is resolved by this module; the rest are
// consumed by the out-of-scope remote-pull collaborator.
type RegistryKind string

const (
	RegistryBuiltin     RegistryKind = "builtin"
	RegistryHTTP        RegistryKind = "http"
	RegistryGitHubLike  RegistryKind = "github-like"
	RegistryGitLabLike  RegistryKind = "gitlab-like"
)

// RegistryEntry is one named remote template source.
type RegistryEntry struct {
	Name          string       `yaml:"name"`
	URL           string       `yaml:"url"`
	Kind          RegistryKind `yaml:"kind"`
	TokenRef      string       `yaml:"token_ref,omitempty"`
	Priority      int          `yaml:"priority,omitempty"`
	Enabled       bool         `yaml:"enabled"`
}

// Document is the on-disk schema of a single config.yaml file (global or
// per-working-directory). Any field may be absent.
type Document struct {
	DefaultModel           string                   `yaml:"default_model,omitempty"`
	TemplateResolutionOrder []types.Layer           `yaml:"template_resolution_order,omitempty"`
	Registries             map[string]RegistryEntry `yaml:"registries,omitempty"`
	Extra                  map[string]interface{}   `yaml:"extra,omitempty"`
}

// Config is the merged, read-only view handed to the rest of the daemon.
// Mutation goes through Set, which rewrites the appropriate on-disk file
// and republishes Invalidated.
type Config struct {
	mu         sync.RWMutex
	globalPath string
	localPath  string
	merged     Document
	broker     *router.Broker
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultResolutionOrder is used when a config document names none.
var DefaultResolutionOrder = []types.Layer{types.LayerLocal, types.LayerPulled, types.LayerBuiltin}

// Load reads globalPath and localPath (either may not exist — treated as
// an empty document), merges local over global, substitutes ${NAME}
// environment references, and returns the result.
func Load(globalPath, localPath string) (*Config, error) {
	global, err := readDocument(globalPath)
	if err != nil {
		return nil, types.NewError(types.KindConfigInvalid, "reading global config", err)
	}
	local, err := readDocument(localPath)
	if err != nil {
		return nil, types.NewError(types.KindConfigInvalid, "reading local config", err)
	}

	merged := mergeDocuments(global, local)
	substituteEnv(&merged)
	if len(merged.TemplateResolutionOrder) == 0 {
		merged.TemplateResolutionOrder = DefaultResolutionOrder
	}

	return &Config{
		globalPath: globalPath,
		localPath:  localPath,
		merged:     merged,
		broker:     router.NewBroker(),
	}, nil
}

func readDocument(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// mergeDocuments folds local over global: scalars overwrite, the
// Registries map deep-merges key by key, and the resolution-order list is
// fully replaced (never appended) when local sets one at all.
func mergeDocuments(global, local Document) Document {
	merged := global

	if local.DefaultModel != "" {
		merged.DefaultModel = local.DefaultModel
	}
	if len(local.TemplateResolutionOrder) > 0 {
		merged.TemplateResolutionOrder = local.TemplateResolutionOrder
	}
	if len(local.Registries) > 0 {
		if merged.Registries == nil {
			merged.Registries = make(map[string]RegistryEntry, len(local.Registries))
		}
		for name, entry := range local.Registries {
			merged.Registries[name] = entry
		}
	}
	if len(local.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]interface{}, len(local.Extra))
		}
		for k, v := range local.Extra {
			merged.Extra[k] = v
		}
	}
	return merged
}

func substituteEnv(doc *Document) {
	doc.DefaultModel = expandRefs(doc.DefaultModel)
	for name, entry := range doc.Registries {
		entry.URL = expandRefs(entry.URL)
		entry.TokenRef = expandRefs(entry.TokenRef)
		doc.Registries[name] = entry
	}
	for k, v := range doc.Extra {
		if s, ok := v.(string); ok {
			doc.Extra[k] = expandRefs(s)
		}
	}
}

func expandRefs(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// DefaultModel returns the merged default model identifier.
func (c *Config) DefaultModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.merged.DefaultModel
}

// TemplateResolutionOrder returns the merged layer search order.
func (c *Config) TemplateResolutionOrder() []types.Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Layer, len(c.merged.TemplateResolutionOrder))
	copy(out, c.merged.TemplateResolutionOrder)
	return out
}

// Registries returns the merged registry entries.
func (c *Config) Registries() map[string]RegistryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]RegistryEntry, len(c.merged.Registries))
	for k, v := range c.merged.Registries {
		out[k] = v
	}
	return out
}

// Get returns one scalar value by dotted key ("default_model",
// "registries.<name>.url", ...) rendered as a string, for the `config get`
// control operation.
func (c *Config) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch key {
	case "default_model":
		return c.merged.DefaultModel, true
	}
	if name, field, ok := strings.Cut(strings.TrimPrefix(key, "registries."), "."); ok && strings.HasPrefix(key, "registries.") {
		entry, exists := c.merged.Registries[name]
		if !exists {
			return "", false
		}
		switch field {
		case "url":
			return entry.URL, true
		case "kind":
			return string(entry.Kind), true
		}
	}
	if v, ok := c.merged.Extra[key]; ok {
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

// Set writes key=value into the local (per-working-directory) document,
// rewrites localPath, re-merges, and publishes an Invalidated event to
// every channel obtained from Subscribe. No daemon component subscribes;
// the template registry reads its files from disk on every call.
func (c *Config) Set(key, value string) error {
	c.mu.Lock()
	local, err := readDocument(c.localPath)
	if err != nil {
		c.mu.Unlock()
		return types.NewError(types.KindConfigInvalid, "reading local config", err)
	}

	switch key {
	case "default_model":
		local.DefaultModel = value
	default:
		if local.Extra == nil {
			local.Extra = make(map[string]interface{})
		}
		local.Extra[key] = value
	}

	if err := writeDocument(c.localPath, local); err != nil {
		c.mu.Unlock()
		return types.NewError(types.KindConfigInvalid, "writing local config", err)
	}

	global, err := readDocument(c.globalPath)
	if err != nil {
		c.mu.Unlock()
		return types.NewError(types.KindConfigInvalid, "reading global config", err)
	}
	merged := mergeDocuments(global, local)
	substituteEnv(&merged)
	if len(merged.TemplateResolutionOrder) == 0 {
		merged.TemplateResolutionOrder = DefaultResolutionOrder
	}
	c.merged = merged
	broker := c.broker
	c.mu.Unlock()

	broker.Publish(&router.Event{Type: router.EventConfigInvalidated, Message: key})
	return nil
}

// Subscribe returns a channel that receives an event every time Set
// changes the merged configuration.
func (c *Config) Subscribe() router.Subscriber {
	return c.broker.Subscribe()
}

// Snapshot returns a copy of the merged configuration document, for the
// `config show` control operation.
func (c *Config) Snapshot() Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := Document{
		DefaultModel:            c.merged.DefaultModel,
		TemplateResolutionOrder: append([]types.Layer(nil), c.merged.TemplateResolutionOrder...),
		Registries:              make(map[string]RegistryEntry, len(c.merged.Registries)),
		Extra:                   make(map[string]interface{}, len(c.merged.Extra)),
	}
	for k, v := range c.merged.Registries {
		doc.Registries[k] = v
	}
	for k, v := range c.merged.Extra {
		doc.Extra[k] = v
	}
	return doc
}

func writeDocument(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
