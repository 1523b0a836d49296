package provider

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
	"loom/pkg/logging"
)

// Pool holds the live connections to every configured provider and
// fronts them as the mesh callbacks: provider listing for the tool
// catalog and tool invocation by provider id.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]Client

	// newClient builds a connection for a spec; replaced in tests
	newClient func(Spec) Client
}

// NewPool creates an empty pool. Providers are attached with Add or
// Connect.
func NewPool() *Pool {
	return &Pool{
		clients:   make(map[string]Client),
		newClient: func(spec Spec) Client { return NewStdioClient(spec) },
	}
}

// Connect builds and initializes a connection for every spec. A provider
// that fails to initialize is logged and skipped; the rest of the mesh
// stays usable.
func (p *Pool) Connect(ctx context.Context, specs []Spec) {
	for _, spec := range specs {
		c := p.newClient(spec)
		if err := c.Initialize(ctx); err != nil {
			logging.Error("ProviderPool", err, "Provider %s failed to initialize, skipping", spec.Name)
			continue
		}
		p.Add(spec.Name, c)
	}
}

// Add attaches an initialized connection under the given provider id.
func (p *Pool) Add(id string, c Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.clients[id]; exists {
		logging.Warn("ProviderPool", "Provider %s replaced by a newer connection", id)
	}
	p.clients[id] = c
	logging.Info("ProviderPool", "Provider %s connected", id)
}

// Remove detaches and closes the connection for a provider id.
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	c, ok := p.clients[id]
	delete(p.clients, id)
	p.mu.Unlock()

	if ok {
		if err := c.Close(); err != nil {
			logging.Warn("ProviderPool", "Error closing provider %s: %v", id, err)
		}
	}
}

// ListProviders returns every connected provider with its current tool
// catalog. A provider whose listing fails is reported without tools so
// the caller still learns it exists.
func (p *Pool) ListProviders(ctx context.Context) ([]api.ProviderInfo, error) {
	p.mu.RLock()
	ids := make([]string, 0, len(p.clients))
	clients := make(map[string]Client, len(p.clients))
	for id, c := range p.clients {
		ids = append(ids, id)
		clients[id] = c
	}
	p.mu.RUnlock()

	infos := make([]api.ProviderInfo, 0, len(ids))
	for _, id := range ids {
		tools, err := clients[id].ListTools(ctx)
		if err != nil {
			logging.Warn("ProviderPool", "Listing tools of provider %s failed: %v", id, err)
			infos = append(infos, api.ProviderInfo{ID: id})
			continue
		}
		infos = append(infos, api.ProviderInfo{ID: id, Tools: tools})
	}
	return infos, nil
}

// CallTool invokes one tool on the named provider.
func (p *Pool) CallTool(ctx context.Context, providerID string, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	p.mu.RLock()
	c, ok := p.clients[providerID]
	p.mu.RUnlock()

	if !ok {
		return nil, api.NewProviderNotFoundError(providerID)
	}
	return c.CallTool(ctx, toolName, args)
}

// Close shuts down every connection.
func (p *Pool) Close() {
	p.mu.RLock()
	ids := make([]string, 0, len(p.clients))
	for id := range p.clients {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	for _, id := range ids {
		p.Remove(id)
	}
}
