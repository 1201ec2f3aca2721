package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeBundle creates a bundle directory with the given files.
func writeBundle(t *testing.T, root, bundle string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, bundle, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func newTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	root := t.TempDir()

	writeBundle(t, root, "baseline-x", map[string]string{
		MetadataFile: `
name: baseline-x
label: Baseline X
type: baseline
variables:
  - name: region
    description: Region
    default: us
snippets:
  - name: base
    file: base.json
`,
		"base.json": `{"region": "{{ .region }}"}`,
	})
	writeBundle(t, root, "service-y", map[string]string{
		MetadataFile: `
name: service-y
label: Alpha Service
type: service
extends: baseline-x
labels:
  presence_check: probe-y
variables:
  - name: sku
    default: std
snippets:
  - name: deploy
    file: deploy.json
`,
		"deploy.json": `{"sku": "{{ .sku }}"}`,
	})
	writeBundle(t, root, "probe-y", map[string]string{
		MetadataFile: "name: probe-y\ntype: templates\n",
	})
	writeBundle(t, root, "no-metadata", map[string]string{
		"README.md": "nothing here",
	})
	writeBundle(t, root, "broken", map[string]string{
		MetadataFile: "name: [unterminated\n",
	})

	store, err := storage.NewFileBackend(root, discardLogger())
	require.NoError(t, err)
	return NewCatalog(store, discardLogger()), root
}

func names(defs []*interfaces.ServiceDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func TestCatalog_LoadAllSkipsUnreadableBundles(t *testing.T) {
	c, _ := newTestCatalog(t)

	defs, err := c.LoadAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"baseline-x", "service-y", "probe-y"}, names(defs))

	for _, def := range defs {
		assert.Equal(t, def.Name, def.Bundle)
	}
}

func TestCatalog_LoadByType(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	services, err := c.LoadByType(ctx, interfaces.ServiceTypeService)
	require.NoError(t, err)
	assert.Equal(t, []string{"service-y"}, names(services))

	templates, err := c.LoadByType(ctx, "templates")
	require.NoError(t, err)
	assert.Equal(t, []string{"probe-y"}, names(templates))

	all, err := c.LoadByType(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCatalog_LoadByName(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	def, ok, err := c.LoadByName(ctx, "service-y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "baseline-x", def.Extends)
	require.Len(t, def.Variables, 1)
	value, declared := def.Variables[0].DefaultValue()
	assert.True(t, declared)
	assert.Equal(t, "std", value)

	def, ok, err = c.LoadByName(ctx, "nonexistent-service")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, def)
}

func TestCatalog_LoadByLabel(t *testing.T) {
	c, _ := newTestCatalog(t)

	defs, err := c.LoadByLabel(context.Background(), "presence_check", "probe-y")
	require.NoError(t, err)
	assert.Equal(t, []string{"service-y"}, names(defs))

	defs, err = c.LoadByLabel(context.Background(), "presence_check", "other")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestCatalog_ResolveBaseline(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()

	target, _, err := c.LoadByName(ctx, "service-y")
	require.NoError(t, err)
	baseline, err := c.ResolveBaseline(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, baseline)
	assert.Equal(t, "baseline-x", baseline.Name)

	none, err := c.ResolveBaseline(ctx, baseline)
	require.NoError(t, err)
	assert.Nil(t, none)

	writeBundle(t, root, "service-z", map[string]string{MetadataFile: "name: service-z\nextends: service-y\n"})
	writeBundle(t, root, "self", map[string]string{MetadataFile: "name: self\nextends: self\n"})
	writeBundle(t, root, "orphan", map[string]string{MetadataFile: "name: orphan\nextends: missing\n"})

	tests := []struct {
		name    string
		wantErr error
	}{
		{"service-z", interfaces.ErrInvalidCatalog},
		{"self", interfaces.ErrInvalidCatalog},
		{"orphan", interfaces.ErrServiceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok, err := c.LoadByName(ctx, tt.name)
			require.NoError(t, err)
			require.True(t, ok)

			_, err = c.ResolveBaseline(ctx, def)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCatalog_ReadTemplate(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	def, _, err := c.LoadByName(ctx, "service-y")
	require.NoError(t, err)

	data, err := c.ReadTemplate(ctx, def, "deploy.json")
	require.NoError(t, err)
	assert.Equal(t, `{"sku": "{{ .sku }}"}`, string(data))

	_, err = c.ReadTemplate(ctx, def, "missing.json")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestCatalog_ReflectsStoreChanges(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()

	_, ok, err := c.LoadByName(ctx, "late")
	require.NoError(t, err)
	assert.False(t, ok)

	writeBundle(t, root, "late", map[string]string{MetadataFile: "name: late\ntype: service\n"})

	_, ok, err = c.LoadByName(ctx, "late")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCatalog_DuplicateNamesKeepFirstBundle(t *testing.T) {
	c, root := newTestCatalog(t)
	writeBundle(t, root, "zz-copy", map[string]string{MetadataFile: "name: service-y\nlabel: copy\n"})

	def, ok, err := c.LoadByName(context.Background(), "service-y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "service-y", def.Bundle)
}

func TestSummaries(t *testing.T) {
	defs := []*interfaces.ServiceDefinition{
		{Name: "b", Label: "Zulu", Type: interfaces.ServiceTypeService},
		{Name: "a", Label: "Alpha", Type: interfaces.ServiceTypeService, Extends: "base"},
		{Name: "c", Label: "Alpha", Type: interfaces.ServiceTypeService},
	}

	summaries := Summaries(defs)
	require.Len(t, summaries, 3)
	assert.Equal(t, "a", summaries[0].Name)
	assert.Equal(t, "base", summaries[0].Extends)
	assert.Equal(t, "c", summaries[1].Name)
	assert.Equal(t, "b", summaries[2].Name)
}
