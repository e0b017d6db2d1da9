package providers

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ncecere/readaloud/internal/config"
)

// Capabilities a provider can offer to the pipeline.
const (
	CapabilityChat   = "chat"
	CapabilitySpeech = "speech"
	CapabilityVision = "vision"
)

// Definition describes a collaborator backend selectable from configuration.
type Definition struct {
	Name         string
	Description  string
	Capabilities []string
	Builder      Builder
}

// Supports reports whether the backend offers capability.
func (d Definition) Supports(capability string) bool {
	return slices.Contains(d.Capabilities, capability)
}

var definitions = map[string]Definition{}

// RegisterDefinition adds a backend to the registry. Registering the same
// name twice panics.
func RegisterDefinition(def Definition) {
	if def.Builder == nil {
		panic("providers: definition builder required")
	}
	if def.Name == "" {
		panic("providers: definition name required")
	}
	if _, exists := definitions[def.Name]; exists {
		panic(fmt.Sprintf("providers: %q registered twice", def.Name))
	}
	if def.Description == "" {
		def.Description = def.Name
	}
	def.Capabilities = slices.Clone(def.Capabilities)
	sort.Strings(def.Capabilities)
	definitions[def.Name] = def
}

// Lookup returns the registered definition for name.
func Lookup(name string) (Definition, bool) {
	def, ok := definitions[name]
	return def, ok
}

// Definitions returns every registered backend sorted by name.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(definitions))
	for _, def := range definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

func registeredBuilders() map[string]Builder {
	builders := make(map[string]Builder, len(definitions))
	for name, def := range definitions {
		builders[name] = def.Builder
	}
	return builders
}

// EnsureConfig panics on a nil config; builders cannot run without one.
func EnsureConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		panic("providers: config is required")
	}
	return cfg
}
