// ABOUTME: Immutable tool registry built once at startup from tool packs.
// ABOUTME: Provides name resolution and order-stable listing for capability discovery.

package packs

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

// ErrDuplicateTool indicates a tool name is already registered.
var ErrDuplicateTool = errors.New("duplicate tool")

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidTool indicates a tool definition is incomplete.
var ErrInvalidTool = errors.New("invalid tool definition")

// ErrRegistryBuilt indicates registration was attempted after Build.
var ErrRegistryBuilt = errors.New("registry already built")

// Builder collects tools before the registry is frozen. Not safe for
// concurrent use; registration happens during startup.
type Builder struct {
	logger *slog.Logger
	tools  map[string]*Tool
	order  []*Tool
	built  bool
}

// NewBuilder creates an empty registry builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger: logger,
		tools:  make(map[string]*Tool),
	}
}

// Register adds a single tool. Returns ErrDuplicateTool if the name exists.
func (b *Builder) Register(tool *Tool) error {
	if b.built {
		return ErrRegistryBuilt
	}
	if err := checkTool(tool); err != nil {
		return err
	}
	if _, exists := b.tools[tool.Name]; exists {
		return fmt.Errorf("%w: '%s'", ErrDuplicateTool, tool.Name)
	}

	registered := *tool
	registered.Params = append([]Param(nil), tool.Params...)
	b.tools[tool.Name] = &registered
	b.order = append(b.order, &registered)
	return nil
}

// RegisterPack registers every tool in a pack, tagging each with the pack ID.
// Nothing is registered if any tool collides.
func (b *Builder) RegisterPack(pack *BuiltinPack) error {
	if pack == nil || pack.ID == "" {
		return fmt.Errorf("%w: pack requires an ID", ErrInvalidTool)
	}

	seen := make(map[string]bool, len(pack.Tools))
	for _, tool := range pack.Tools {
		if err := checkTool(tool); err != nil {
			return fmt.Errorf("pack %s: %w", pack.ID, err)
		}
		if _, exists := b.tools[tool.Name]; exists || seen[tool.Name] {
			return fmt.Errorf("%w: '%s' in pack %s", ErrDuplicateTool, tool.Name, pack.ID)
		}
		seen[tool.Name] = true
	}

	for _, tool := range pack.Tools {
		tagged := *tool
		tagged.PackID = pack.ID
		if err := b.Register(&tagged); err != nil {
			return err
		}
	}

	b.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
	)
	return nil
}

// Build freezes the builder and returns the registry. Further registration
// on the builder fails with ErrRegistryBuilt.
func (b *Builder) Build() *Registry {
	b.built = true
	return &Registry{
		tools: b.tools,
		order: b.order,
	}
}

func checkTool(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("%w: tool requires a name", ErrInvalidTool)
	}
	if tool.Handler == nil {
		return fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidTool, tool.Name)
	}
	names := make(map[string]bool, len(tool.Params))
	for _, p := range tool.Params {
		if p.Name == "" || names[p.Name] {
			return fmt.Errorf("%w: tool '%s' has an empty or repeated parameter name", ErrInvalidTool, tool.Name)
		}
		names[p.Name] = true
	}
	return nil
}

// Registry is the frozen set of tools. It has no mutators, so concurrent
// reads need no locking.
type Registry struct {
	tools map[string]*Tool
	order []*Tool
}

// Resolve returns the tool with the given name or ErrUnknownTool.
func (r *Registry) Resolve(name string) (*Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTool, name)
	}
	return tool, nil
}

// List yields tools in registration order.
func (r *Registry) List() iter.Seq[*Tool] {
	return func(yield func(*Tool) bool) {
		for _, tool := range r.order {
			if !yield(tool) {
				return
			}
		}
	}
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
