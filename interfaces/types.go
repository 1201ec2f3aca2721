// Package interfaces defines the core interfaces and types for the snippet provisioning system.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"sort"
)

// ServiceType is the category tag of a catalog bundle.
type ServiceType string

const (
	// ServiceTypeService marks bundles offered to callers for provisioning.
	ServiceTypeService ServiceType = "service"
	// ServiceTypeBaseline marks dependency bundles other services extend.
	ServiceTypeBaseline ServiceType = "baseline"
	// ServiceTypeTemplate marks helper bundles such as presence probes.
	ServiceTypeTemplate ServiceType = "template"
)

// VariableSpec is one named input a ServiceDefinition declares.
type VariableSpec struct {
	// Name is both the form field key and the template variable key.
	Name string `yaml:"name" json:"name"`

	// Description is the display label.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Default is the fallback value. A nil Default means the descriptor did not declare one.
	Default *string `yaml:"default,omitempty" json:"default,omitempty"`

	// TypeHint is a weak classifier; every variable is treated as free text.
	TypeHint string `yaml:"type_hint,omitempty" json:"type_hint,omitempty"`
}

// DefaultValue returns the declared default and whether one was declared.
func (v VariableSpec) DefaultValue() (string, bool) {
	if v.Default == nil {
		return "", false
	}
	return *v.Default, true
}

// TemplateFile references one template within a bundle.
type TemplateFile struct {
	Name string `yaml:"name" json:"name"`
	// File is relative to the bundle directory.
	File string `yaml:"file" json:"file"`
}

// ServiceDefinition is the unit of provisioning, loaded from a bundle's metadata descriptor.
// Values are never mutated after loading.
type ServiceDefinition struct {
	Name        string            `yaml:"name" json:"name"`
	Label       string            `yaml:"label,omitempty" json:"label,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Type        ServiceType       `yaml:"type,omitempty" json:"type,omitempty"`
	Extends     string            `yaml:"extends,omitempty" json:"extends,omitempty"`
	Variables   []VariableSpec    `yaml:"variables,omitempty" json:"variables,omitempty"`
	Snippets    []TemplateFile    `yaml:"snippets,omitempty" json:"snippets,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Bundle is the catalog directory the descriptor was read from.
	Bundle string `yaml:"-" json:"bundle"`
}

// Variable looks up a declared variable by name.
func (s *ServiceDefinition) Variable(name string) (VariableSpec, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}

// LabelValue returns the value of a label, or "" when unset.
func (s *ServiceDefinition) LabelValue(key string) string {
	if s.Labels == nil {
		return ""
	}
	return s.Labels[key]
}

// ServiceSummary is the catalog listing entry handed to callers.
type ServiceSummary struct {
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Type        ServiceType `json:"type"`
	Extends     string      `json:"extends,omitempty"`
}

// Summary returns the listing entry for the definition.
func (s *ServiceDefinition) Summary() ServiceSummary {
	return ServiceSummary{
		Name:        s.Name,
		Label:       s.Label,
		Description: s.Description,
		Type:        s.Type,
		Extends:     s.Extends,
	}
}

// VariableContext maps variable names to concrete values for one provisioning request.
type VariableContext map[string]string

// Clone returns an independent copy.
func (c VariableContext) Clone() VariableContext {
	out := make(VariableContext, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// SetDefault stores value under name unless name is already present.
// It reports whether the value was stored.
func (c VariableContext) SetDefault(name, value string) bool {
	if _, exists := c[name]; exists {
		return false
	}
	c[name] = value
	return true
}

// Keys returns the variable names in sorted order.
func (c VariableContext) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
