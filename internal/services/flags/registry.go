// Package flags evaluates metadata flags against descriptor fragments and plugin-level facts.
package flags

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
)

// StructuralPredicate is a pure test over one descriptor element
type StructuralPredicate func(el *etree.Element) bool

// PluginPredicate looks a flag up through the plugin facts provider
type PluginPredicate func(ctx context.Context, plugin *models.Plugin, facts interfaces.PluginFacts) (bool, error)

// Variant binds a flag to its two optional predicates
type Variant struct {
	Flag       models.Flag
	Structural StructuralPredicate
	External   PluginPredicate
}

// Registry holds flag variants in evaluation order
type Registry struct {
	variants []Variant
	logger   arbor.ILogger
}

// NewRegistry creates a registry from explicit variants
func NewRegistry(logger arbor.ILogger, variants ...Variant) *Registry {
	return &Registry{
		variants: variants,
		logger:   logger,
	}
}

// NewDefaultRegistry creates a registry with every built-in flag
func NewDefaultRegistry(logger arbor.ILogger) *Registry {
	return NewRegistry(logger,
		Variant{Flag: models.FlagScmHTTPS, Structural: scmUsesHTTPS},
		Variant{Flag: models.FlagMavenRepositoriesHTTPS, Structural: repositoriesUseHTTPS},
		Variant{Flag: models.FlagLicenseSet, Structural: childValuePresent("licenses", "license", "name")},
		Variant{Flag: models.FlagDeveloperSet, Structural: childValuePresent("developers", "developer", "id")},
		Variant{Flag: models.FlagIsAPIPlugin, External: func(ctx context.Context, p *models.Plugin, facts interfaces.PluginFacts) (bool, error) {
			return facts.IsAPIPlugin(ctx, p.Name)
		}},
		Variant{Flag: models.FlagIsDeprecated, External: func(ctx context.Context, p *models.Plugin, facts interfaces.PluginFacts) (bool, error) {
			return facts.IsDeprecated(ctx, p.Name)
		}},
	)
}

// Variants returns the registered variants
func (r *Registry) Variants() []Variant {
	return r.variants
}

// Lookup returns the variant registered for the flag
func (r *Registry) Lookup(flag models.Flag) (Variant, bool) {
	for _, v := range r.variants {
		if v.Flag == flag {
			return v, true
		}
	}
	return Variant{}, false
}

// Structural returns every flag whose structural predicate matches the element,
// in registry order
func (r *Registry) Structural(el *etree.Element) []models.Flag {
	var matched []models.Flag
	for _, v := range r.variants {
		if v.Structural != nil && v.Structural(el) {
			matched = append(matched, v.Flag)
		}
	}
	return matched
}

// Walk tests every element of the tree rooted at root against every variant.
// A flag is appended once per matching element, so repeated fragments yield repeated flags.
func (r *Registry) Walk(root *etree.Element) []models.Flag {
	if root == nil {
		return nil
	}
	flags := r.Structural(root)
	for _, child := range root.ChildElements() {
		flags = append(flags, r.Walk(child)...)
	}
	return flags
}

// Evaluate runs the plugin-level check for a flag. A plugin without metadata is
// never flagged; a flag already recorded in the metadata is not evaluated again.
func (r *Registry) Evaluate(ctx context.Context, flag models.Flag, plugin *models.Plugin, facts interfaces.PluginFacts) (bool, error) {
	if plugin.Metadata == nil {
		r.logger.Debug().Str("plugin", plugin.Name).Msg("Metadata not found for plugin")
		return false, nil
	}
	if plugin.Metadata.HasFlag(flag) {
		r.logger.Debug().Str("plugin", plugin.Name).Str("flag", string(flag)).Msg("Flag already set")
		return true, nil
	}

	variant, ok := r.Lookup(flag)
	if !ok || variant.External == nil {
		return false, nil
	}

	result, err := variant.External(ctx, plugin, facts)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate flag %s: %w", flag, err)
	}

	r.logger.Debug().
		Str("plugin", plugin.Name).
		Str("flag", string(flag)).
		Bool("applicable", result).
		Msg("Flag evaluated")

	return result, nil
}

// EvaluateAll runs every plugin-level check and records matches in the plugin metadata
func (r *Registry) EvaluateAll(ctx context.Context, plugin *models.Plugin, facts interfaces.PluginFacts) error {
	if plugin.Metadata == nil {
		return nil
	}
	for _, v := range r.variants {
		if v.External == nil {
			continue
		}
		ok, err := r.Evaluate(ctx, v.Flag, plugin, facts)
		if err != nil {
			return err
		}
		if ok {
			plugin.Metadata.AddFlag(v.Flag)
		}
	}
	return nil
}

func scmUsesHTTPS(el *etree.Element) bool {
	if el.Tag != "scm" {
		return false
	}
	conn := el.SelectElement("connection")
	return conn != nil && strings.HasPrefix(strings.TrimSpace(conn.Text()), "scm:git:https")
}

// repositoriesUseHTTPS holds when every repository url is https, including the empty block
func repositoriesUseHTTPS(el *etree.Element) bool {
	if el.Tag != "repositories" {
		return false
	}
	for _, repo := range el.SelectElements("repository") {
		url := repo.SelectElement("url")
		if url == nil || !strings.HasPrefix(strings.TrimSpace(url.Text()), "https") {
			return false
		}
	}
	return true
}

// childValuePresent matches a <block> with at least one <entry> that declares <field>
func childValuePresent(block, entry, field string) StructuralPredicate {
	return func(el *etree.Element) bool {
		if el.Tag != block {
			return false
		}
		for _, e := range el.SelectElements(entry) {
			if f := e.SelectElement(field); f != nil && strings.TrimSpace(f.Text()) != "" {
				return true
			}
		}
		return false
	}
}
