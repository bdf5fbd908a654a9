package interfaces

import "context"

// PluginFacts answers questions about a plugin from the upstream registry
type PluginFacts interface {
	IsDeprecated(ctx context.Context, plugin string) (bool, error)
	IsAPIPlugin(ctx context.Context, plugin string) (bool, error)
	LatestVersion(ctx context.Context, plugin string) (string, error)
}
