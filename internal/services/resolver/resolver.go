// -----------------------------------------------------------------------
// Resolver - Local effective model of a plugin descriptor
// -----------------------------------------------------------------------

package resolver

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/models"
)

const (
	pluginParentGroupID    = "org.jenkins-ci.plugins"
	pluginParentArtifactID = "plugin"
	jenkinsCoreGroupID     = "org.jenkins-ci.main"
	jenkinsCoreArtifactID  = "jenkins-core"
	jenkinsVersionProperty = "jenkins.version"

	// Nested references deeper than this are left unexpanded
	maxInterpolationPasses = 8
)

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolver reads a plugin descriptor and attaches the resolution marker.
// It interpolates properties declared in the descriptor itself and adds the
// jenkins-core entry the plugin parent manages through jenkins.version.
// Remote parents are never downloaded.
type Resolver struct {
	logger arbor.ILogger
}

// NewResolver creates a new descriptor resolver
func NewResolver(logger arbor.ILogger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve parses <local repository>/pom.xml
func (r *Resolver) Resolve(ctx context.Context, plugin *models.Plugin) (*models.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := plugin.PomPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	descriptor, err := r.ResolveBytes(data, plugin.LocalRepository)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	descriptor.Path = path
	return descriptor, nil
}

// ResolveBytes builds a descriptor from raw pom.xml content. basedir becomes
// the value of ${basedir} and ${project.basedir}.
func (r *Resolver) ResolveBytes(data []byte, basedir string) (*models.Descriptor, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "project" {
		return nil, fmt.Errorf("descriptor root must be <project>")
	}

	descriptor := &models.Descriptor{Doc: doc}

	artifactID := childText(root, "artifactId")
	if artifactID == "" {
		r.logger.Debug().Msg("Descriptor has no artifactId, leaving it unresolved")
		return descriptor, nil
	}

	resolution := &models.Resolution{
		Properties: make(map[string]string),
	}

	if parent := root.SelectElement("parent"); parent != nil {
		resolution.Parent = &models.Coordinates{
			GroupID:    childText(parent, "groupId"),
			ArtifactID: childText(parent, "artifactId"),
			Version:    childText(parent, "version"),
		}
	}

	resolution.Project = models.Coordinates{
		GroupID:    childText(root, "groupId"),
		ArtifactID: artifactID,
		Version:    childText(root, "version"),
	}
	if resolution.Parent != nil {
		if resolution.Project.GroupID == "" {
			resolution.Project.GroupID = resolution.Parent.GroupID
		}
		if resolution.Project.Version == "" {
			resolution.Project.Version = resolution.Parent.Version
		}
	}
	resolution.Name = childText(root, "name")

	// Built-in values are visible to interpolation the same way declared properties are
	declared := map[string]string{
		"project.groupId":    resolution.Project.GroupID,
		"project.artifactId": resolution.Project.ArtifactID,
		"project.version":    resolution.Project.Version,
	}
	properties := root.SelectElement("properties")
	if properties != nil {
		for _, p := range properties.ChildElements() {
			declared[p.Tag] = strings.TrimSpace(p.Text())
		}
	}

	values := make(map[string]string, len(declared)+2)
	for k, v := range declared {
		values[k] = v
	}
	values["basedir"] = basedir
	values["project.basedir"] = basedir
	values = interpolateAll(values)
	resolution.Project.Version = values["project.version"]

	// Declared properties end up in cached metadata, so ${basedir} references
	// stay unexpanded there
	portable := interpolateAll(declared)
	if properties != nil {
		for _, p := range properties.ChildElements() {
			resolution.Properties[p.Tag] = portable[p.Tag]
		}
	}
	resolution.Properties["basedir"] = basedir
	resolution.Properties["project.basedir"] = basedir
	resolution.Name = interpolate(resolution.Name, values)

	if dm := root.SelectElement("dependencyManagement"); dm != nil {
		if deps := dm.SelectElement("dependencies"); deps != nil {
			for _, dep := range deps.SelectElements("dependency") {
				resolution.ManagedDependencies = append(resolution.ManagedDependencies, models.ManagedDependency{
					Coordinates: models.Coordinates{
						GroupID:    interpolate(childText(dep, "groupId"), values),
						ArtifactID: interpolate(childText(dep, "artifactId"), values),
						Version:    interpolate(childText(dep, "version"), values),
					},
					Type:  childText(dep, "type"),
					Scope: childText(dep, "scope"),
				})
			}
		}
	}

	if _, managed := resolution.ManagedVersion(jenkinsCoreGroupID, jenkinsCoreArtifactID); !managed && inheritsPluginParent(resolution) {
		if v := resolution.Properties[jenkinsVersionProperty]; v != "" {
			resolution.ManagedDependencies = append(resolution.ManagedDependencies, models.ManagedDependency{
				Coordinates: models.Coordinates{
					GroupID:    jenkinsCoreGroupID,
					ArtifactID: jenkinsCoreArtifactID,
					Version:    v,
				},
			})
		}
	}

	descriptor.Resolution = resolution
	r.logger.Debug().
		Str("artifact", resolution.Project.Key()).
		Int("properties", len(resolution.Properties)).
		Int("managed", len(resolution.ManagedDependencies)).
		Msg("Descriptor resolved")
	return descriptor, nil
}

func inheritsPluginParent(r *models.Resolution) bool {
	return r.Parent != nil && r.Parent.GroupID == pluginParentGroupID && r.Parent.ArtifactID == pluginParentArtifactID
}

func childText(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

// interpolate replaces ${name} references that have a known value
func interpolate(s string, values map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := values[m[2:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func interpolateAll(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	for pass := 0; pass < maxInterpolationPasses; pass++ {
		changed := false
		for k, v := range out {
			if nv := interpolate(v, out); nv != v {
				out[k] = nv
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return out
}
