package control

import "github.com/corvid-labs/ago/pkg/types"

// Request/response payload shapes for each control op (SPEC_FULL.md §4.6).
// pkg/client marshals the *Args types and unmarshals the *Result types on
// the other end of the same wire.

type CreateArgs struct {
	TemplateName string `json:"template_name"`
	CustomName   string `json:"custom_name,omitempty"`
}

type CreateResult struct {
	InstanceID string `json:"instance_id"`
	ConfigDir  string `json:"config_dir"`
}

type RunArgs struct {
	TemplateName string `json:"template_name"`
	CustomName   string `json:"custom_name,omitempty"`
	InstanceID   string `json:"instance_id,omitempty"` // reuse a prior `create`
}

type PSResult struct {
	Instances []types.Instance `json:"instances"`
}

type InspectArgs struct {
	Agent string `json:"agent"`
}

type SendArgs struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Payload string            `json:"payload"`
	Kind    types.MessageKind `json:"kind"`
}

type SendResult struct {
	MessageID uint64 `json:"message_id"`
}

type LogsArgs struct {
	Agent  string `json:"agent"`
	Follow bool   `json:"follow"`
	Tail   int    `json:"tail,omitempty"` // not read: logs always streams the whole file
}

type StopArgs struct {
	Agent string `json:"agent,omitempty"`
	All   bool   `json:"all,omitempty"`
}

type QueuesArgs struct {
	Follow bool `json:"follow"`
}

type QueuesResult struct {
	Queues []types.QueueStats `json:"queues"`
}

type TemplatesResult struct {
	Templates []types.TemplateSummary `json:"templates"`
}

type PullArgs struct {
	Registry string `json:"registry"`
	Template string `json:"template"`
}

type PullResult struct {
	Path string `json:"path"`
}

type ConfigArgs struct {
	Action string `json:"action"` // "get", "set", or "show"
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
}

type ConfigResult struct {
	Value string            `json:"value,omitempty"`
	Found bool              `json:"found,omitempty"`
	Show  map[string]string `json:"show,omitempty"`
}

type ChatArgs struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}
