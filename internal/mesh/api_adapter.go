package mesh

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
)

// Adapter implements api.ToolCatalogHandler over a Catalog.
type Adapter struct {
	catalog *Catalog
}

// NewAdapter creates the tool catalog handler adapter.
func NewAdapter(catalog *Catalog) *Adapter {
	return &Adapter{catalog: catalog}
}

// Register registers this adapter with the central API layer.
func (a *Adapter) Register() {
	api.RegisterToolCatalog(a)
}

func (a *Adapter) ListTools(ctx context.Context) ([]api.ToolDescriptor, error) {
	return a.catalog.ListAll(ctx)
}

func (a *Adapter) CallToolByName(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return a.catalog.Call(ctx, name, args)
}
