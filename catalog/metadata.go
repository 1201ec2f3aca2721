package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"gopkg.in/yaml.v3"
)

// MetadataFile is the descriptor every bundle directory carries.
const MetadataFile = "metadata.yaml"

// ReadError reports a bundle whose descriptor is missing, unreadable or malformed.
// It matches interfaces.ErrCatalogRead with errors.Is.
type ReadError struct {
	Bundle string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("catalog bundle %q: %v", e.Bundle, e.Err)
}

func (e *ReadError) Unwrap() []error {
	return []error{interfaces.ErrCatalogRead, e.Err}
}

// ParseMetadata decodes and validates a bundle descriptor.
// The bundle directory name stands in for a missing name.
func ParseMetadata(bundle string, data []byte) (*interfaces.ServiceDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ReadError{Bundle: bundle, Err: errors.New("empty descriptor")}
	}

	var def interfaces.ServiceDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &ReadError{Bundle: bundle, Err: fmt.Errorf("failed to decode %s: %w", MetadataFile, err)}
	}

	def.Bundle = bundle
	if def.Name == "" {
		def.Name = bundle
	}
	def.Type = normalizeType(def.Type)

	if err := validate(&def); err != nil {
		return nil, &ReadError{Bundle: bundle, Err: err}
	}

	return &def, nil
}

// MarshalMetadata encodes a definition the way descriptors are written on disk.
func MarshalMetadata(def *interfaces.ServiceDefinition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

func validate(def *interfaces.ServiceDefinition) error {
	seen := make(map[string]struct{}, len(def.Variables))
	for i, v := range def.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable #%d has no name", i)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("variable %q declared twice", v.Name)
		}
		seen[v.Name] = struct{}{}
	}

	for i, s := range def.Snippets {
		if s.File == "" {
			return fmt.Errorf("snippet #%d (%s) has no file", i, s.Name)
		}
	}

	return nil
}

// normalizeType folds the plural "templates" tag used by older catalogs.
func normalizeType(t interfaces.ServiceType) interfaces.ServiceType {
	lowered := interfaces.ServiceType(strings.ToLower(strings.TrimSpace(string(t))))
	if lowered == "templates" {
		return interfaces.ServiceTypeTemplate
	}
	return lowered
}
