// -----------------------------------------------------------------------
// Metadata - Extracted, cached facts about a plugin's structure
// -----------------------------------------------------------------------

package models

import "time"

// MetadataKey is the cache slot holding a plugin's extracted metadata
const MetadataKey = "metadata"

// Metadata is assembled in memory by the collector and persisted as a whole.
// Once written it is not modified until the next extraction overwrites it.
type Metadata struct {
	Key                string            `json:"key"`
	PluginName         string            `json:"plugin_name"`
	ParentVersion      string            `json:"parent_version,omitempty"`
	JenkinsVersion     string            `json:"jenkins_version,omitempty"`
	BomArtifactID      string            `json:"bom_artifact_id,omitempty"`
	BomVersion         string            `json:"bom_version,omitempty"`
	Properties         map[string]string `json:"properties"`
	Flags              []Flag            `json:"flags"`
	CommonFiles        []ArchetypeFile   `json:"common_files"`
	OtherFiles         []string          `json:"other_files"`
	JDKs               []JDK             `json:"jdks"`
	DescriptorChecksum string            `json:"descriptor_checksum,omitempty"`
	ExtractedAt        time.Time         `json:"extracted_at"`
}

// HasFlag reports whether the flag was recorded during extraction or a previous evaluation
func (m *Metadata) HasFlag(flag Flag) bool {
	if m == nil {
		return false
	}
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasCommonFile reports whether the archetype file was found in the working copy
func (m *Metadata) HasCommonFile(file ArchetypeFile) bool {
	if m == nil {
		return false
	}
	for _, f := range m.CommonFiles {
		if f == file {
			return true
		}
	}
	return false
}

// AddFlag records a flag obtained from a plugin-level evaluation.
// Structural flags are appended by the collector and may repeat.
func (m *Metadata) AddFlag(flag Flag) {
	if m.HasFlag(flag) {
		return
	}
	m.Flags = append(m.Flags, flag)
}

// Property returns a descriptor property and whether it was declared
func (m *Metadata) Property(name string) (string, bool) {
	if m == nil || m.Properties == nil {
		return "", false
	}
	v, ok := m.Properties[name]
	return v, ok
}
