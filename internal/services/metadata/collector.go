// -----------------------------------------------------------------------
// Collector - Two-phase metadata extraction (scan the tree, then apply on the descriptor)
// -----------------------------------------------------------------------

package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/flags"
	"github.com/ternarybob/modernizer/internal/storage/cache"
)

const (
	jenkinsCoreGroupID    = "org.jenkins-ci.main"
	jenkinsCoreArtifactID = "jenkins-core"
	bomGroupID            = "io.jenkins.tools.bom"
)

// localProperties are machine specific and never cached
var localProperties = map[string]bool{
	"project.basedir": true,
	"basedir":         true,
}

// skippedDirs are never descended into during the scan
var skippedDirs = map[string]bool{
	".git":   true,
	"target": true,
}

// Collector extracts metadata from a plugin working copy
type Collector struct {
	resolver interfaces.DependencyResolver
	registry *flags.Registry
	store    *cache.Store
	logger   arbor.ILogger
}

// NewCollector creates a new metadata collector
func NewCollector(resolver interfaces.DependencyResolver, registry *flags.Registry, store *cache.Store, logger arbor.ILogger) *Collector {
	return &Collector{
		resolver: resolver,
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Collect resolves the descriptor, scans the working copy and builds the metadata.
// A resolution failure is returned as is: metadata built on an unresolved model
// would be silently incomplete. A descriptor without a resolution marker yields
// nil metadata and no error.
func (c *Collector) Collect(ctx context.Context, plugin *models.Plugin) (*models.Metadata, error) {
	descriptor, err := c.resolver.Resolve(ctx, plugin)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptor of %s: %w", plugin.Name, err)
	}

	acc := NewAccumulator()
	if err := c.Scan(ctx, plugin.LocalRepository, acc); err != nil {
		return nil, err
	}

	return c.Apply(ctx, descriptor, plugin, acc)
}

// Scan walks every file under root, classifying it and reading build matrices
// from any Jenkinsfile. Parse failures of a single Jenkinsfile are logged and skipped.
func (c *Collector) Scan(ctx context.Context, root string, acc *Accumulator) error {
	err := walkFiles(ctx, root, func(path, rel string) error {
		acc.AddFile(rel)
		if filepath.Base(path) == string(models.ArchetypeJenkinsfile) {
			c.scanJenkinsfile(path, rel, acc)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}

	c.logger.Debug().
		Str("root", root).
		Int("common_files", len(acc.CommonFiles)).
		Int("other_files", len(acc.OtherFiles)).
		Int("jdks", len(acc.JDKs)).
		Msg("Scan complete")

	return nil
}

// walkFiles calls fn for every regular file under root in lexical order, with its
// slash-separated path relative to root. Build and VCS directories are not entered.
func walkFiles(ctx context.Context, root string, fn func(path, rel string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel))
	})
}

func (c *Collector) scanJenkinsfile(path, rel string, acc *Accumulator) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", rel).Msg("Failed to read Jenkinsfile")
		return
	}
	jdks, err := ParseBuildMatrix(string(data))
	if err != nil {
		c.logger.Warn().Err(err).Str("file", rel).Msg("Failed to parse Jenkinsfile")
		return
	}
	for _, jdk := range jdks {
		acc.AddJDK(jdk)
	}
}

// Apply builds and persists the metadata. Without a resolution marker on the
// descriptor it does nothing and returns nil metadata.
func (c *Collector) Apply(ctx context.Context, descriptor *models.Descriptor, plugin *models.Plugin, acc *Accumulator) (*models.Metadata, error) {
	if descriptor == nil || descriptor.Resolution == nil {
		c.logger.Debug().Str("plugin", plugin.Name).Msg("No resolution marker on descriptor, skipping metadata")
		return nil, nil
	}
	resolution := descriptor.Resolution

	acc.AddFlags(c.registry.Walk(descriptor.Root())...)

	properties := make(map[string]string, len(resolution.Properties))
	for k, v := range resolution.Properties {
		if localProperties[k] {
			continue
		}
		properties[k] = v
	}

	metadata := &models.Metadata{
		Key:         plugin.Name,
		PluginName:  resolution.Name,
		Properties:  properties,
		Flags:       acc.Flags,
		CommonFiles: acc.CommonFiles,
		OtherFiles:  acc.OtherFiles,
		JDKs:        acc.JDKs,
		ExtractedAt: time.Now().UTC(),
	}
	if metadata.PluginName == "" {
		metadata.PluginName = resolution.Project.ArtifactID
	}
	if resolution.Parent != nil {
		metadata.ParentVersion = resolution.Parent.Version
	}
	if v, ok := resolution.ManagedVersion(jenkinsCoreGroupID, jenkinsCoreArtifactID); ok {
		metadata.JenkinsVersion = v
	}
	for _, dep := range resolution.ManagedDependencies {
		if dep.GroupID == bomGroupID {
			metadata.BomArtifactID = dep.ArtifactID
			metadata.BomVersion = dep.Version
			break
		}
	}

	checksum, err := Checksum(plugin.LocalRepository)
	if err != nil {
		c.logger.Warn().Err(err).Str("plugin", plugin.Name).Msg("Failed to compute descriptor checksum")
	}
	metadata.DescriptorChecksum = checksum

	if err := c.store.Put(plugin.Name, models.MetadataKey, metadata); err != nil {
		return nil, fmt.Errorf("failed to persist metadata of %s: %w", plugin.Name, err)
	}

	c.logger.Info().
		Str("plugin", plugin.Name).
		Int("flags", len(metadata.Flags)).
		Int("jdks", len(metadata.JDKs)).
		Str("jenkins_version", metadata.JenkinsVersion).
		Msg("Metadata collected")

	return metadata, nil
}

// Checksum hashes what metadata is derived from: the path of every scanned file,
// plus the content of the descriptor and of every Jenkinsfile. Cached metadata is
// reused only while it matches. A missing descriptor is an error.
func Checksum(root string) (string, error) {
	if _, err := os.Stat(filepath.Join(root, models.PomFile)); err != nil {
		return "", err
	}

	h := sha256.New()
	err := walkFiles(context.Background(), root, func(path, rel string) error {
		h.Write([]byte(rel))
		h.Write([]byte{0})
		if rel != models.PomFile && filepath.Base(path) != string(models.ArchetypeJenkinsfile) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		h.Write(data)
		h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
