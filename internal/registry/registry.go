package registry

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/triage-ai/deskgate/internal/protocol"
	"github.com/triage-ai/deskgate/internal/providers"
)

// Handler executes a tool against the injected provider bundle with already
// validated, bound arguments. Handlers never retain the bundle.
type Handler func(ctx context.Context, bundle *providers.Bundle, args Args) (any, error)

// Tool is one registry entry: schema, argument contract, required
// capability, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Specs       []ArgumentSpec
	Capability  providers.Capability

	// Check runs cross-field validation after binding (e.g. click's
	// x/y-or-element rule). Nil when single-field specs are enough.
	Check func(Args) error

	Handler Handler

	compiled *jsonschema.Schema
}

// ValidateArguments checks the raw argument document against the tool's
// compiled JSON Schema. Structural errors (wrong types, missing required
// fields, unknown properties) surface here before typed binding.
func (t *Tool) ValidateArguments(raw []byte) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var doc any
	if err := protocol.UnmarshalStd(raw, &doc); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := t.compiled.Validate(doc); err != nil {
		return err
	}
	return nil
}

// Registry is the closed, load-time-constructed tool table. No dynamic
// registration: the tool set is fixed at construction.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

// Config carries the few tunables the tool table needs.
type Config struct {
	MaxWaitSeconds float64 // upper bound for the wait tool
}

// New builds the registry and compiles every tool's schema. A schema that
// fails to compile is a programming error surfaced at startup, not at call
// time.
func New(cfg Config) (*Registry, error) {
	if cfg.MaxWaitSeconds <= 0 {
		cfg.MaxWaitSeconds = 30
	}

	tools := defineTools(cfg)
	r := &Registry{
		tools:  tools,
		byName: make(map[string]*Tool, len(tools)),
	}
	for _, t := range tools {
		if err := compileSchema(t); err != nil {
			return nil, fmt.Errorf("registry: tool %s: %w", t.Name, err)
		}
		r.byName[t.Name] = t
	}
	return r, nil
}

// Get returns the tool by name, or nil when unknown.
func (r *Registry) Get(name string) *Tool {
	return r.byName[name]
}

// List returns all tools in declaration order.
func (r *Registry) List() []*Tool {
	return r.tools
}

// ToolInfos returns the tools/list wire representation.
func (r *Registry) ToolInfos() []protocol.ToolInfo {
	infos := make([]protocol.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, protocol.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return infos
}

func compileSchema(t *Tool) error {
	// Round-trip through JSON so the compiler sees stdlib-shaped values,
	// the same way the schema arrives from a wire peer.
	schemaBytes, err := protocol.Marshal(t.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	var schemaDoc any
	if err := protocol.UnmarshalStd(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	resource := t.Name + ".schema.json"
	if err := compiler.AddResource(resource, schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	t.compiled = compiled
	return nil
}
