// -----------------------------------------------------------------------
// Catalog - Embedded recipe definitions with expression preconditions
// -----------------------------------------------------------------------

package recipes

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed recipes.yaml
var embedded []byte

// ErrUnknownRecipe is returned by Lookup when no recipe matches the name
var ErrUnknownRecipe = errors.New("unknown recipe")

type catalogFile struct {
	Recipes []*models.Recipe `yaml:"recipes"`
}

// Catalog holds the loaded recipes in declaration order along with their compiled preconditions
type Catalog struct {
	recipes  []*models.Recipe
	byName   map[string]*models.Recipe
	programs map[string]*vm.Program
	logger   arbor.ILogger
}

// NewCatalog loads the embedded recipe catalog
func NewCatalog(logger arbor.ILogger) (*Catalog, error) {
	return ParseCatalog(embedded, logger)
}

// ParseCatalog loads a catalog from YAML. Every recipe needs a name, display name,
// description and at least one tag; preconditions are compiled up front.
func ParseCatalog(data []byte, logger arbor.ILogger) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse recipe catalog: %w", err)
	}

	c := &Catalog{
		byName:   make(map[string]*models.Recipe),
		programs: make(map[string]*vm.Program),
		logger:   logger,
	}

	for i, recipe := range file.Recipes {
		if recipe == nil {
			return nil, fmt.Errorf("recipe %d is empty", i)
		}
		if recipe.Name == "" || recipe.DisplayName == "" || recipe.Description == "" || len(recipe.Tags) == 0 {
			return nil, fmt.Errorf("recipe %d (%q) must declare name, displayName, description and tags", i, recipe.Name)
		}
		if _, exists := c.byName[recipe.Name]; exists {
			return nil, fmt.Errorf("duplicate recipe: %s", recipe.Name)
		}
		if recipe.Precondition != "" {
			program, err := compile(recipe.Precondition)
			if err != nil {
				return nil, fmt.Errorf("recipe %s: invalid precondition: %w", recipe.Name, err)
			}
			c.programs[recipe.Name] = program
		}
		c.recipes = append(c.recipes, recipe)
		c.byName[recipe.Name] = recipe
	}

	logger.Debug().Int("recipes", len(c.recipes)).Msg("Recipe catalog loaded")
	return c, nil
}

// All returns every recipe in catalog order
func (c *Catalog) All() []*models.Recipe {
	out := make([]*models.Recipe, len(c.recipes))
	copy(out, c.recipes)
	return out
}

// Names returns the short names of every recipe, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.recipes))
	for _, r := range c.recipes {
		names = append(names, r.ShortName())
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a recipe by its fully qualified or short name
func (c *Catalog) Lookup(name string) (*models.Recipe, error) {
	name = strings.TrimSpace(name)
	if r, ok := c.byName[name]; ok {
		return r, nil
	}
	if r, ok := c.byName[models.RecipePrefix+name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownRecipe, name, strings.Join(c.Names(), ", "))
}

// CheckPrecondition evaluates the recipe precondition against metadata.
// A recipe without precondition always applies.
func (c *Catalog) CheckPrecondition(recipe *models.Recipe, metadata *models.Metadata) (bool, error) {
	if recipe == nil {
		return false, fmt.Errorf("no recipe")
	}
	if recipe.Precondition == "" {
		return true, nil
	}
	if metadata == nil {
		return false, fmt.Errorf("recipe %s: precondition needs metadata", recipe.ShortName())
	}

	program, ok := c.programs[recipe.Name]
	if !ok {
		// Recipe built outside the catalog
		var err error
		if program, err = compile(recipe.Precondition); err != nil {
			return false, fmt.Errorf("recipe %s: invalid precondition: %w", recipe.ShortName(), err)
		}
	}

	result, err := expr.Run(program, Environment(metadata))
	if err != nil {
		return false, fmt.Errorf("recipe %s: precondition failed: %w", recipe.ShortName(), err)
	}
	applicable, _ := result.(bool)

	c.logger.Debug().
		Str("recipe", recipe.ShortName()).
		Str("plugin", metadata.PluginName).
		Bool("applicable", applicable).
		Msg("Precondition evaluated")
	return applicable, nil
}

func compile(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.Env(Environment(&models.Metadata{})), expr.AsBool())
}

// Environment exposes metadata to precondition expressions
func Environment(m *models.Metadata) map[string]any {
	flags := make([]string, 0, len(m.Flags))
	for _, f := range m.Flags {
		flags = append(flags, string(f))
	}
	jdks := make([]int, 0, len(m.JDKs))
	for _, j := range m.JDKs {
		jdks = append(jdks, int(j))
	}
	properties := m.Properties
	if properties == nil {
		properties = map[string]string{}
	}

	return map[string]any{
		"plugin":         m.PluginName,
		"parentVersion":  m.ParentVersion,
		"jenkinsVersion": m.JenkinsVersion,
		"bomArtifactId":  m.BomArtifactID,
		"bomVersion":     m.BomVersion,
		"properties":     properties,
		"flags":          flags,
		"jdks":           jdks,
		"hasOtherFiles":  len(m.OtherFiles) > 0,
		"hasFlag": func(name string) bool {
			return m.HasFlag(models.Flag(name))
		},
		"hasFile": func(name string) bool {
			return m.HasCommonFile(models.ArchetypeFile(name))
		},
		"hasProperty": func(name string) bool {
			_, ok := m.Property(name)
			return ok
		},
	}
}
