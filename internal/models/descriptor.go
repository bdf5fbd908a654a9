package models

import "github.com/beevik/etree"

// Coordinates identify an artifact in a maven repository
type Coordinates struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version,omitempty"`
}

// Key returns "groupId:artifactId"
func (c Coordinates) Key() string {
	return c.GroupID + ":" + c.ArtifactID
}

// ManagedDependency is one dependencyManagement entry of the resolved model
type ManagedDependency struct {
	Coordinates
	Type  string `json:"type,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// Resolution is the dependency-resolution marker attached to a descriptor.
// A descriptor without one is not the primary project descriptor.
type Resolution struct {
	Project             Coordinates         `json:"project"`
	Name                string              `json:"name,omitempty"`
	Parent              *Coordinates        `json:"parent,omitempty"`
	Properties          map[string]string   `json:"properties"`
	ManagedDependencies []ManagedDependency `json:"managed_dependencies"`
}

// ManagedVersion returns the version managed for groupId:artifactId
func (r *Resolution) ManagedVersion(groupID, artifactID string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, d := range r.ManagedDependencies {
		if d.GroupID == groupID && d.ArtifactID == artifactID {
			return d.Version, d.Version != ""
		}
	}
	return "", false
}

// Descriptor is a parsed project descriptor with its optional resolution marker
type Descriptor struct {
	Path       string
	Doc        *etree.Document
	Resolution *Resolution
}

// Root returns the document element or nil
func (d *Descriptor) Root() *etree.Element {
	if d == nil || d.Doc == nil {
		return nil
	}
	return d.Doc.Root()
}
