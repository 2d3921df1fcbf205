package tools

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kepvey/drover/pkg/genai"
)

// Registry indexes tools by name. Manual registrations persist for the
// process lifetime; discovered tools (from MCP servers) can be atomically
// replaced on re-discovery without disturbing manual ones.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *slog.Logger
}

type entry struct {
	tool       Tool
	discovered bool
	server     string
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a manually provided tool. A duplicate name overwrites the
// existing registration with a warning.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t.Name()]; exists {
		r.logger.Warn("tool already registered, overwriting", "tool", t.Name())
	}
	r.entries[t.Name()] = &entry{tool: t}
}

// RegisterDiscovered adds a tool found on an external server.
func (r *Registry) RegisterDiscovered(server string, t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t.Name()]; exists {
		r.logger.Warn("tool already registered, overwriting", "tool", t.Name(), "server", server)
	}
	r.entries[t.Name()] = &entry{tool: t, discovered: true, server: server}
}

// ReplaceDiscovered swaps the whole discovered set in one step. Manual
// registrations are untouched; a discovered name colliding with a manual one
// is skipped with a warning.
func (r *Registry) ReplaceDiscovered(byServer map[string][]Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		if e.discovered {
			delete(r.entries, name)
		}
	}
	for server, list := range byServer {
		for _, t := range list {
			if existing, ok := r.entries[t.Name()]; ok && !existing.discovered {
				r.logger.Warn("discovered tool shadows manual registration, skipping",
					"tool", t.Name(), "server", server)
				continue
			}
			r.entries[t.Name()] = &entry{tool: t, discovered: true, server: server}
		}
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// ServerOf returns the MCP server a discovered tool came from, or false for
// manual tools.
func (r *Registry) ServerOf(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || !e.discovered {
		return "", false
	}
	return e.server, true
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ToolsByServer returns the discovered tools from one server, sorted by name.
func (r *Registry) ToolsByServer(server string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, e := range r.entries {
		if e.discovered && e.server == server {
			out = append(out, e.tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FunctionDeclarations exports the registered tools as model-request
// declarations, sorted by name for deterministic requests.
func (r *Registry) FunctionDeclarations() []genai.FunctionDeclaration {
	list := r.List()
	out := make([]genai.FunctionDeclaration, 0, len(list))
	for _, t := range list {
		out = append(out, genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParameterSchema(),
		})
	}
	return out
}
