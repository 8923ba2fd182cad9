package workspace

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// manifestDoc is the on-disk shape consumed by ManifestClient
type manifestDoc struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

// ManifestClient serves workspace definitions from a local YAML manifest
// instead of the cluster API. It backs development and single-node
// deployments where no control plane is running.
type ManifestClient struct {
	path string

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	order      []string
}

// NewManifestClient loads the manifest at path. The file must parse and
// every workspace must carry a name; duplicates are rejected.
func NewManifestClient(path string) (*ManifestClient, error) {
	c := &ManifestClient{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the manifest from disk, replacing the in-memory set
// atomically. On error the previous set is kept.
func (c *ManifestClient) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read workspace manifest %s: %w", c.path, err)
	}

	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse workspace manifest %s: %w", c.path, err)
	}

	byName := make(map[string]*Workspace, len(doc.Workspaces))
	order := make([]string, 0, len(doc.Workspaces))
	for i := range doc.Workspaces {
		ws := doc.Workspaces[i]
		if ws.Name == "" {
			return fmt.Errorf("workspace manifest %s: entry %d has no name", c.path, i)
		}
		if _, exists := byName[ws.Name]; exists {
			return fmt.Errorf("workspace manifest %s: duplicate workspace %q", c.path, ws.Name)
		}
		byName[ws.Name] = &ws
		order = append(order, ws.Name)
	}

	c.mu.Lock()
	c.workspaces = byName
	c.order = order
	c.mu.Unlock()
	return nil
}

// GetWorkspace returns the named workspace or (nil, nil) when absent
func (c *ManifestClient) GetWorkspace(_ context.Context, name string) (*Workspace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ws, ok := c.workspaces[name]
	if !ok {
		return nil, nil
	}
	copied := *ws
	return &copied, nil
}

// ListWorkspaces returns all workspaces in manifest order
func (c *ManifestClient) ListWorkspaces(_ context.Context) ([]Workspace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Workspace, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.workspaces[name])
	}
	return out, nil
}
