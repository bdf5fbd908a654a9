package models

// NoCompileTag marks a recipe whose output does not need to be built
const NoCompileTag = "no-compile"

// RecipePrefix is the fully qualified prefix shared by every catalog recipe
const RecipePrefix = "io.jenkins.tools.pluginmodernizer."

// Recipe is a named, taggable unit of automated change. Immutable once loaded.
type Recipe struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"displayName" json:"display_name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`

	// Precondition is an expression over the plugin metadata; empty means always applicable
	Precondition string            `yaml:"precondition,omitempty" json:"precondition,omitempty"`
	Options      map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// RequiresBuild is false only when the tags carry the no-compile marker
func (r *Recipe) RequiresBuild() bool {
	if r == nil {
		return true
	}
	for _, tag := range r.Tags {
		if tag == NoCompileTag {
			return false
		}
	}
	return true
}

// HasTag reports whether the recipe carries the tag
func (r *Recipe) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ShortName returns the name without the catalog prefix
func (r *Recipe) ShortName() string {
	if len(r.Name) > len(RecipePrefix) && r.Name[:len(RecipePrefix)] == RecipePrefix {
		return r.Name[len(RecipePrefix):]
	}
	return r.Name
}
