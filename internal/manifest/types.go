// Package manifest defines the on-disk shape of a SnApp descriptor
// (snap.json) and the closed enumerations (permissions, hook events) the
// rest of the kernel validates against.
package manifest

// Permission is a capability tag from the closed set a SnApp may declare
// in its manifest. The façade (internal/facade) checks these before
// performing any gated operation.
type Permission string

// The closed set of permission tags (spec §3 "Permission").
const (
	PermStorageRead    Permission = "storage:read"
	PermStorageWrite   Permission = "storage:write"
	PermStorageDelete  Permission = "storage:delete"
	PermSessionHook    Permission = "session:hook"
	PermPromptInject   Permission = "prompt:inject"
	PermUITab          Permission = "ui:tab"
	PermUIPanel        Permission = "ui:panel"
	PermUIModal        Permission = "ui:modal"
	PermUIToast        Permission = "ui:toast"
	PermCommandRegister Permission = "command:register"
	PermToolRegister   Permission = "tool:register"
	PermToolWrap       Permission = "tool:wrap"
	PermFSRead         Permission = "fs:read"
	PermFSWrite        Permission = "fs:write"
	PermBusPublish     Permission = "bus:publish"
	PermBusSubscribe   Permission = "bus:subscribe"
	PermSystemExec     Permission = "system:exec"
	PermNetworkRequest Permission = "network:request"
)

var knownPermissions = map[Permission]bool{
	PermStorageRead: true, PermStorageWrite: true, PermStorageDelete: true,
	PermSessionHook: true, PermPromptInject: true,
	PermUITab: true, PermUIPanel: true, PermUIModal: true, PermUIToast: true,
	PermCommandRegister: true,
	PermToolRegister:    true, PermToolWrap: true,
	PermFSRead: true, PermFSWrite: true,
	PermBusPublish: true, PermBusSubscribe: true,
	PermSystemExec:     true,
	PermNetworkRequest: true,
}

// IsKnownPermission reports whether p is in the closed permission set.
// Unknown permissions are a warning, never a validation failure (spec §4.1).
func IsKnownPermission(p Permission) bool {
	return knownPermissions[p]
}

// HookEvent is one of the fixed host lifecycle events the Hook Router
// dispatches (spec §4.3).
type HookEvent string

const (
	EventSessionStart HookEvent = "session_start"
	EventSessionEnd   HookEvent = "session_end"
	EventBeforeAgent  HookEvent = "before_agent"
	EventAfterAgent   HookEvent = "after_agent"
	EventBeforeTool   HookEvent = "before_tool"
	EventAfterTool    HookEvent = "after_tool"
	EventToolError    HookEvent = "tool_error"
)

// KnownHookEvents lists every event the router recognizes, in a stable
// order used nowhere but diagnostics.
var KnownHookEvents = []HookEvent{
	EventSessionStart, EventSessionEnd,
	EventBeforeAgent, EventAfterAgent,
	EventBeforeTool, EventAfterTool,
	EventToolError,
}

// OpenClaw carries the host-version contract a manifest declares.
type OpenClaw struct {
	// MinVersion is the minimum host (openclaw) version this app requires.
	MinVersion string `json:"minVersion"`

	// Hooks is an advisory list of hook event names the app intends to
	// subscribe to; the router does not enforce it.
	Hooks []string `json:"hooks,omitempty"`
}

// Config carries a SnApp's declared configuration shape and defaults.
type Config struct {
	// Schema is a JSON Schema object validating the app's configuration.
	// SPEC_FULL wires this into real validation via jsonschema/v5 — see
	// ValidateConfig and internal/manifest/schema.go.
	Schema map[string]interface{} `json:"schema,omitempty"`

	// Defaults are the default configuration values, validated against
	// Schema when both are present.
	Defaults map[string]interface{} `json:"defaults,omitempty"`
}

// Manifest is the immutable descriptor loaded from an app's snap.json
// (spec §3 "Manifest"). Once registered it never mutates.
type Manifest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ShortName   string       `json:"shortName,omitempty"`
	Entry       string       `json:"entry"`
	Permissions []Permission `json:"permissions"`
	OpenClaw    OpenClaw     `json:"openclaw"`

	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Author      string `json:"author,omitempty"`
	Config      Config `json:"config,omitempty"`
}

// HasPermission reports whether the manifest declares tag.
func (m *Manifest) HasPermission(tag Permission) bool {
	for _, p := range m.Permissions {
		if p == tag {
			return true
		}
	}
	return false
}
