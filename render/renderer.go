package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// MissingVariableError names the first variable a template references that the
// context does not provide. It matches interfaces.ErrMissingVariable.
type MissingVariableError struct {
	Name string
	File string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("%v: %q referenced by %s", interfaces.ErrMissingVariable, e.Name, e.File)
}

func (e *MissingVariableError) Unwrap() error {
	return interfaces.ErrMissingVariable
}

// TemplateSource loads the template files of a definition.
type TemplateSource interface {
	ReadTemplate(ctx context.Context, def *interfaces.ServiceDefinition, file string) ([]byte, error)
}

// Document is the rendered form of one template file.
type Document struct {
	Name string
	File string
	Body []byte
}

// Renderer binds variable contexts to the template files of catalog definitions.
type Renderer struct {
	source TemplateSource
	log    *slog.Logger
}

// NewRenderer creates a renderer reading templates from source.
func NewRenderer(source TemplateSource, log *slog.Logger) *Renderer {
	return &Renderer{
		source: source,
		log:    log,
	}
}

// Render renders every snippet of def, in declaration order, against vars.
// Output depends only on the template files and vars.
func (r *Renderer) Render(ctx context.Context, def *interfaces.ServiceDefinition, vars interfaces.VariableContext) ([]Document, error) {
	docs := make([]Document, 0, len(def.Snippets))
	for _, snippet := range def.Snippets {
		text, err := r.source.ReadTemplate(ctx, def, snippet.File)
		if err != nil {
			return nil, err
		}

		body, err := RenderTemplate(snippet.File, text, vars)
		if err != nil {
			return nil, err
		}

		r.log.Debug("Rendered snippet",
			slog.String("service", def.Name),
			slog.String("snippet", snippet.Name),
			slog.Int("size", len(body)))

		docs = append(docs, Document{
			Name: snippet.Name,
			File: snippet.File,
			Body: body,
		})
	}
	return docs, nil
}

// RenderTemplate renders a single template text against vars.
// It fails with *MissingVariableError before executing anything when a
// required variable is absent. Variables that are only tested, by default or
// an if condition, render as empty when absent.
func RenderTemplate(file string, text []byte, vars interfaces.VariableContext) ([]byte, error) {
	tmpl, err := parseTemplate(file, text)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(vars))
	for k, v := range vars {
		data[k] = v
	}

	var optionalMissing []string
	for _, ref := range collectReferences(treesOf(tmpl)) {
		if _, ok := vars[ref.name]; ok {
			continue
		}
		if !ref.optional {
			return nil, &MissingVariableError{Name: ref.name, File: file}
		}
		optionalMissing = append(optionalMissing, ref.name)
	}
	for _, name := range optionalMissing {
		if _, ok := data[name]; !ok {
			data[name] = ""
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", file, err)
	}
	return buf.Bytes(), nil
}

func parseTemplate(file string, text []byte) (*template.Template, error) {
	tmpl, err := template.New(file).
		Option("missingkey=error").
		Funcs(sprig.HermeticTxtFuncMap()).
		Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse template %s: %v", interfaces.ErrInvalidCatalog, file, err)
	}
	return tmpl, nil
}

// treesOf returns the main tree first, then associated templates by name.
func treesOf(tmpl *template.Template) []*parse.Tree {
	trees := []*parse.Tree{tmpl.Tree}

	associated := tmpl.Templates()
	sort.Slice(associated, func(i, j int) bool { return associated[i].Name() < associated[j].Name() })
	for _, t := range associated {
		if t.Name() == tmpl.Name() {
			continue
		}
		trees = append(trees, t.Tree)
	}
	return trees
}
