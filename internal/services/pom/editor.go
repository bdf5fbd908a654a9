package pom

import "strings"

const (
	propertiesElement    = "properties"
	parentElement        = "parent"
	relativePathElement  = "relativePath"
	dependencyManagement = "dependencyManagement"
	dependenciesElement  = "dependencies"
	dependencyElement    = "dependency"
	urlElement           = "url"

	// PlatformVersionProperty holds the minimum core version a plugin runs on
	PlatformVersionProperty = "jenkins.version"

	insecureScheme = "http://"
	secureScheme   = "https://"
)

// RemovePropertiesByName removes the named properties of the project together with
// any comment and whitespace directly in front of them. Reports whether anything was removed.
func (d *Document) RemovePropertiesByName(names ...string) bool {
	props := d.root.child(propertiesElement)
	if props == nil {
		return false
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	removed := false
	for _, el := range props.elements("") {
		if wanted[el.name.Local] {
			d.remove(props, el)
			removed = true
		}
	}
	return removed
}

// UpdateOrInsertParent overwrites the coordinates of the parent block, appending a
// new parent block to the project when there is none
func (d *Document) UpdateOrInsertParent(groupID, artifactID, version string) {
	parent := d.root.child(parentElement)
	if parent == nil {
		parent = newElement(parentElement, "")
		d.appendElement(d.root, parent)
	}
	d.setChildValue(parent, "groupId", groupID)
	d.setChildValue(parent, "artifactId", artifactID)
	d.setChildValue(parent, "version", version)
}

// SetMinimumPlatformVersion sets the jenkins.version property, creating the
// properties block when needed
func (d *Document) SetMinimumPlatformVersion(version string) {
	props := d.root.child(propertiesElement)
	if props == nil {
		props = newElement(propertiesElement, "")
		d.appendElement(d.root, props)
	}
	d.setChildValue(props, PlatformVersionProperty, version)
}

// AddDependencyBundleImport appends an import-scoped pom dependency to dependencyManagement.
// Repeated calls append repeated entries; use HasManagedDependency to check first.
func (d *Document) AddDependencyBundleImport(groupID, artifactID, version string) {
	mgmt := d.root.child(dependencyManagement)
	if mgmt == nil {
		mgmt = newElement(dependencyManagement, "")
		d.appendElement(d.root, mgmt)
	}
	deps := mgmt.child(dependenciesElement)
	if deps == nil {
		deps = newElement(dependenciesElement, "")
		d.appendElement(mgmt, deps)
	}

	dep := newElement(dependencyElement, "")
	d.appendElement(deps, dep)
	d.appendElement(dep, newElement("groupId", groupID))
	d.appendElement(dep, newElement("artifactId", artifactID))
	d.appendElement(dep, newElement("version", version))
	d.appendElement(dep, newElement("type", "pom"))
	d.appendElement(dep, newElement("scope", "import"))
}

// HasManagedDependency reports whether dependencyManagement already declares groupId:artifactId
func (d *Document) HasManagedDependency(groupID, artifactID string) bool {
	mgmt := d.root.child(dependencyManagement)
	if mgmt == nil {
		return false
	}
	deps := mgmt.child(dependenciesElement)
	if deps == nil {
		return false
	}
	for _, dep := range deps.elements(dependencyElement) {
		g, a := dep.child("groupId"), dep.child("artifactId")
		if g != nil && a != nil && g.value() == groupID && a.value() == artifactID {
			return true
		}
	}
	return false
}

// ReplaceInsecureURLs rewrites every url element starting with http:// to https://.
// Reports whether at least one url was rewritten.
func (d *Document) ReplaceInsecureURLs() bool {
	changed := false
	d.walk(d.root, func(n *node) {
		if n.name.Local != urlElement {
			return
		}
		text := n.rawText()
		if !strings.HasPrefix(strings.TrimSpace(text), insecureScheme) {
			return
		}
		n.setText(strings.ReplaceAll(text, insecureScheme, secureScheme))
		changed = true
	})
	if changed {
		d.dirty = true
	}
	return changed
}

// EnsurePathReferenceUnderParent adds an empty relativePath as the last child of the
// parent block. Reports whether it was inserted; a missing parent block is left alone.
func (d *Document) EnsurePathReferenceUnderParent() bool {
	parent := d.root.child(parentElement)
	if parent == nil || parent.child(relativePathElement) != nil {
		return false
	}
	d.appendElement(parent, newEmptyElement(relativePathElement))
	return true
}

// Packaging returns the declared packaging or ""
func (d *Document) Packaging() string {
	return d.childValue(d.root, "packaging")
}

// ArtifactID returns the project artifactId
func (d *Document) ArtifactID() string {
	return d.childValue(d.root, "artifactId")
}

// ParentVersion returns the parent version or "" without a parent block
func (d *Document) ParentVersion() string {
	parent := d.root.child(parentElement)
	if parent == nil {
		return ""
	}
	return d.childValue(parent, "version")
}

// Property returns a project property and whether it is declared
func (d *Document) Property(name string) (string, bool) {
	props := d.root.child(propertiesElement)
	if props == nil {
		return "", false
	}
	el := props.child(name)
	if el == nil {
		return "", false
	}
	return el.value(), true
}

func (d *Document) childValue(parent *node, name string) string {
	if el := parent.child(name); el != nil {
		return el.value()
	}
	return ""
}

// setChildValue updates the first child element with the name or appends one
func (d *Document) setChildValue(parent *node, name, value string) {
	el := parent.child(name)
	if el == nil {
		d.appendElement(parent, newElement(name, value))
		return
	}
	if el.value() == value && !el.selfClosing {
		return
	}
	el.setText(value)
	d.dirty = true
}

func (d *Document) walk(n *node, fn func(*node)) {
	if n.kind != kindElement {
		return
	}
	fn(n)
	for _, c := range n.children {
		d.walk(c, fn)
	}
}
