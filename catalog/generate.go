package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/render"
)

// GenerateMetadata drafts a descriptor for a bundle that has template files but
// no metadata yet. Every file becomes a snippet, and every variable the
// templates reference becomes a text variable whose default is its own name.
func (c *Catalog) GenerateMetadata(ctx context.Context, bundle string) (*interfaces.ServiceDefinition, error) {
	files, err := c.store.ListFiles(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of bundle %s: %w", bundle, err)
	}

	def := &interfaces.ServiceDefinition{
		Name:   bundle,
		Label:  capwords(bundle),
		Type:   interfaces.ServiceTypeService,
		Bundle: bundle,
	}

	seen := make(map[string]struct{})
	for _, file := range files {
		if file == MetadataFile || strings.HasPrefix(path.Base(file), ".") {
			continue
		}

		text, err := c.store.ReadFile(ctx, bundle, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		names, err := render.Variables(file, text)
		if err != nil {
			return nil, err
		}

		def.Snippets = append(def.Snippets, interfaces.TemplateFile{
			Name: path.Base(file),
			File: file,
		})

		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			defaultValue := name
			def.Variables = append(def.Variables, interfaces.VariableSpec{
				Name:        name,
				Description: capwords(strings.ReplaceAll(name, "_", " ")),
				Default:     &defaultValue,
				TypeHint:    "text",
			})
		}
	}

	c.log.Info("Generated bundle descriptor",
		"bundle", bundle,
		"snippets", len(def.Snippets),
		"variables", len(def.Variables))

	return def, nil
}

// WriteMetadata stores def as the descriptor of its bundle.
func (c *Catalog) WriteMetadata(ctx context.Context, def *interfaces.ServiceDefinition) error {
	data, err := MarshalMetadata(def)
	if err != nil {
		return err
	}
	bundle := def.Bundle
	if bundle == "" {
		bundle = def.Name
	}
	return c.store.WriteFile(ctx, bundle, MetadataFile, data)
}

// capwords upper-cases the first letter of each word and lower-cases the rest.
func capwords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
