package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/metrics"
)

// Catalog indexes the bundles of a catalog store.
// Every lookup re-scans the store so edits to the catalog are visible immediately.
type Catalog struct {
	store interfaces.CatalogStore
	log   *slog.Logger
}

// NewCatalog creates a catalog over the given store.
func NewCatalog(store interfaces.CatalogStore, log *slog.Logger) *Catalog {
	return &Catalog{
		store: store,
		log:   log,
	}
}

// Store returns the underlying catalog store.
func (c *Catalog) Store() interfaces.CatalogStore {
	return c.store
}

// LoadAll parses the descriptor of every bundle in the store.
// Bundles with a missing, unreadable or malformed descriptor are logged and skipped.
// An error is returned only when the store itself cannot be listed.
func (c *Catalog) LoadAll(ctx context.Context) ([]*interfaces.ServiceDefinition, error) {
	bundles, err := c.store.ListBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog bundles: %w", err)
	}

	defs := make([]*interfaces.ServiceDefinition, 0, len(bundles))
	names := make(map[string]string, len(bundles))
	for _, bundle := range bundles {
		def, err := c.loadBundle(ctx, bundle)
		if err != nil {
			c.log.Warn("Skipping catalog bundle", slog.String("bundle", bundle), "err", err)
			metrics.RecordSkippedBundle()
			continue
		}

		if other, dup := names[def.Name]; dup {
			c.log.Warn("Skipping catalog bundle with duplicate name",
				slog.String("bundle", bundle),
				slog.String("name", def.Name),
				slog.String("firstBundle", other))
			metrics.RecordSkippedBundle()
			continue
		}
		names[def.Name] = bundle
		defs = append(defs, def)
	}

	return defs, nil
}

// LoadByType returns the definitions tagged with typ. An empty typ returns everything.
func (c *Catalog) LoadByType(ctx context.Context, typ interfaces.ServiceType) ([]*interfaces.ServiceDefinition, error) {
	defs, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return defs, nil
	}

	typ = normalizeType(typ)
	filtered := make([]*interfaces.ServiceDefinition, 0, len(defs))
	for _, def := range defs {
		if def.Type == typ {
			filtered = append(filtered, def)
		}
	}
	return filtered, nil
}

// LoadByName returns the definition with the given name.
// ok is false when no bundle carries that name; this is not an error.
func (c *Catalog) LoadByName(ctx context.Context, name string) (def *interfaces.ServiceDefinition, ok bool, err error) {
	defs, err := c.LoadAll(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, def := range defs {
		if def.Name == name {
			return def, true, nil
		}
	}
	c.log.Debug("Service not found in catalog", slog.String("name", name))
	return nil, false, nil
}

// LoadByLabel returns the definitions whose labels map key to value.
func (c *Catalog) LoadByLabel(ctx context.Context, key, value string) ([]*interfaces.ServiceDefinition, error) {
	defs, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*interfaces.ServiceDefinition
	for _, def := range defs {
		if v, ok := def.Labels[key]; ok && v == value {
			filtered = append(filtered, def)
		}
	}
	return filtered, nil
}

// ResolveBaseline returns the definition def extends, or nil when it extends nothing.
// Only a single hop is supported: a baseline that itself extends another bundle,
// or a definition extending itself, is reported as ErrInvalidCatalog.
func (c *Catalog) ResolveBaseline(ctx context.Context, def *interfaces.ServiceDefinition) (*interfaces.ServiceDefinition, error) {
	if def.Extends == "" {
		return nil, nil
	}
	if def.Extends == def.Name {
		return nil, fmt.Errorf("%w: %s extends itself", interfaces.ErrInvalidCatalog, def.Name)
	}

	baseline, ok, err := c.LoadByName(ctx, def.Extends)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: baseline %s of %s", interfaces.ErrServiceNotFound, def.Extends, def.Name)
	}
	if baseline.Extends != "" {
		return nil, fmt.Errorf("%w: %s extends %s which extends %s, only one level is supported",
			interfaces.ErrInvalidCatalog, def.Name, baseline.Name, baseline.Extends)
	}

	return baseline, nil
}

// ReadTemplate returns the contents of one of the definition's template files.
func (c *Catalog) ReadTemplate(ctx context.Context, def *interfaces.ServiceDefinition, file string) ([]byte, error) {
	data, err := c.store.ReadFile(ctx, def.Bundle, file)
	if err != nil {
		if errors.Is(err, interfaces.ErrContentNotFound) {
			return nil, fmt.Errorf("template %s of %s: %w", file, def.Name, err)
		}
		return nil, fmt.Errorf("failed to read template %s of %s: %w", file, def.Name, err)
	}
	return data, nil
}

// Summaries returns the listing entries of defs ordered by label, then name.
func Summaries(defs []*interfaces.ServiceDefinition) []interfaces.ServiceSummary {
	out := make([]interfaces.ServiceSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (c *Catalog) loadBundle(ctx context.Context, bundle string) (*interfaces.ServiceDefinition, error) {
	data, err := c.store.ReadFile(ctx, bundle, MetadataFile)
	if err != nil {
		return nil, &ReadError{Bundle: bundle, Err: err}
	}
	return ParseMetadata(bundle, data)
}
