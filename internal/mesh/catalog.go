package mesh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"

	"loom/internal/api"
	"loom/pkg/logging"
)

// remoteEntry binds one discovered tool to the provider that serves it.
type remoteEntry struct {
	providerID string
	tool       mcp.Tool
}

// Catalog is the unified tool index over local leaf tools and the tools
// of every reachable mesh provider.
//
// The remote half is a cache rebuilt from the provider lister: lookups
// use the cached index, and a refresh runs at most once concurrently via
// singleflight. Local tools take precedence over remote tools with the
// same name.
type Catalog struct {
	lister api.ProviderLister
	caller api.ToolCaller

	mu        sync.RWMutex
	local     map[string]api.LocalTool
	remote    map[string]remoteEntry
	refreshed time.Time

	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewCatalog creates a catalog backed by the given provider lister and
// tool caller. Either may be nil, leaving only local tools callable.
func NewCatalog(lister api.ProviderLister, caller api.ToolCaller, cacheTTL time.Duration) *Catalog {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Catalog{
		lister:   lister,
		caller:   caller,
		local:    make(map[string]api.LocalTool),
		remote:   make(map[string]remoteEntry),
		cacheTTL: cacheTTL,
	}
}

// RegisterLocal adds an in-process leaf tool. A local tool shadows any
// remote tool of the same name.
func (c *Catalog) RegisterLocal(t api.LocalTool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.local[t.Tool.Name]; exists {
		logging.Warn("Catalog", "Local tool %s re-registered, replacing previous handler", t.Tool.Name)
	}
	c.local[t.Tool.Name] = t
}

// Refresh rebuilds the remote index from the provider lister. Concurrent
// callers share one in-flight refresh.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.lister == nil {
		return nil
	}

	_, err, _ := c.sf.Do("refresh", func() (interface{}, error) {
		providers, err := c.lister.ListProviders(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list providers: %w", err)
		}

		index := make(map[string]remoteEntry)
		for _, p := range providers {
			for _, tool := range p.Tools {
				if prev, exists := index[tool.Name]; exists {
					logging.Warn("Catalog", "Tool %s offered by both %s and %s, keeping %s",
						tool.Name, prev.providerID, p.ID, prev.providerID)
					continue
				}
				index[tool.Name] = remoteEntry{providerID: p.ID, tool: tool}
			}
		}

		c.mu.Lock()
		c.remote = index
		c.refreshed = time.Now()
		c.mu.Unlock()

		logging.Debug("Catalog", "Refreshed remote tool index: %d providers, %d tools",
			len(providers), len(index))
		return nil, nil
	})
	return err
}

// ensureFresh refreshes the remote index when the cache has gone stale.
func (c *Catalog) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	stale := time.Since(c.refreshed) > c.cacheTTL
	c.mu.RUnlock()

	if !stale {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		logging.Warn("Catalog", "Remote tool refresh failed, serving cached index: %v", err)
	}
}

// ListAll returns every known tool, local and remote, sorted by name.
func (c *Catalog) ListAll(ctx context.Context) ([]api.ToolDescriptor, error) {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	descriptors := make([]api.ToolDescriptor, 0, len(c.local)+len(c.remote))
	for _, t := range c.local {
		descriptors = append(descriptors, api.ToolDescriptor{Tool: t.Tool, Local: true})
	}
	for name, e := range c.remote {
		if _, shadowed := c.local[name]; shadowed {
			continue
		}
		descriptors = append(descriptors, api.ToolDescriptor{Tool: e.tool, ProviderID: e.providerID})
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Tool.Name < descriptors[j].Tool.Name
	})
	return descriptors, nil
}

// ResolveNames maps an explicit tool-name list to descriptors. Names
// that resolve nowhere yield stub descriptors so the request shape is
// preserved; calling a stub fails at call time.
func (c *Catalog) ResolveNames(ctx context.Context, names []string) []api.ToolDescriptor {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	descriptors := make([]api.ToolDescriptor, 0, len(names))
	for _, name := range names {
		if t, ok := c.local[name]; ok {
			descriptors = append(descriptors, api.ToolDescriptor{Tool: t.Tool, Local: true})
			continue
		}
		if e, ok := c.remote[name]; ok {
			descriptors = append(descriptors, api.ToolDescriptor{Tool: e.tool, ProviderID: e.providerID})
			continue
		}

		logging.Warn("Catalog", "Requested tool %s not found anywhere, exposing stub", name)
		descriptors = append(descriptors, api.ToolDescriptor{
			Tool: mcp.NewTool(name,
				mcp.WithDescription("Tool is currently unavailable."),
			),
			Stub: true,
		})
	}
	return descriptors
}

// FindProvider reports where a tool lives: local, or the provider id
// serving it. Returns a not-found error for unknown names.
func (c *Catalog) FindProvider(ctx context.Context, name string) (providerID string, local bool, err error) {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.local[name]; ok {
		return "", true, nil
	}
	if e, ok := c.remote[name]; ok {
		return e.providerID, false, nil
	}
	return "", false, api.NewToolNotFoundError(name)
}

// Call invokes a tool by name, dispatching to the local handler or the
// owning provider. Unknown names fail with a not-found error.
func (c *Catalog) Call(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.ensureFresh(ctx)

	c.mu.RLock()
	localTool, isLocal := c.local[name]
	entry, isRemote := c.remote[name]
	c.mu.RUnlock()

	switch {
	case isLocal:
		logging.Debug("Catalog", "Calling local tool %s", name)
		return localTool.Handler(ctx, args)
	case isRemote:
		if c.caller == nil {
			return nil, fmt.Errorf("no tool caller configured for remote tool %s", name)
		}
		logging.Debug("Catalog", "Calling tool %s on provider %s", name, entry.providerID)
		return c.caller.CallTool(ctx, entry.providerID, name, args)
	default:
		return nil, api.NewToolNotFoundError(name)
	}
}
