package transform

import (
	"fmt"
	"strings"

	"github.com/ternarybob/modernizer/internal/services/pom"
)

// nativeRecipe edits the descriptor in place and reports an error for unusable options
type nativeRecipe func(doc *pom.Document, options map[string]string) error

// nativeRecipes are applied with the structure-preserving editor instead of OpenRewrite,
// keyed by short recipe name
var nativeRecipes = map[string]nativeRecipe{
	"FetchMetadata":             func(*pom.Document, map[string]string) error { return nil },
	"RemoveOffendingProperties": removeOffendingProperties,
	"UseHttpsRepositories":      useHTTPSRepositories,
	"UpgradeParentPom":          upgradeParentPom,
	"SetupJenkinsBaseline":      setupJenkinsBaseline,
	"AddPluginsBom":             addPluginsBom,
}

func removeOffendingProperties(doc *pom.Document, options map[string]string) error {
	var names []string
	for _, name := range strings.Split(options["properties"], ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("option properties is required")
	}
	doc.RemovePropertiesByName(names...)
	return nil
}

func useHTTPSRepositories(doc *pom.Document, _ map[string]string) error {
	doc.ReplaceInsecureURLs()
	return nil
}

func upgradeParentPom(doc *pom.Document, options map[string]string) error {
	if err := requireOptions(options, "groupId", "artifactId", "version"); err != nil {
		return err
	}
	doc.UpdateOrInsertParent(options["groupId"], options["artifactId"], options["version"])
	return nil
}

func setupJenkinsBaseline(doc *pom.Document, options map[string]string) error {
	if err := requireOptions(options, "version"); err != nil {
		return err
	}
	doc.SetMinimumPlatformVersion(options["version"])
	return nil
}

func addPluginsBom(doc *pom.Document, options map[string]string) error {
	if err := requireOptions(options, "groupId", "artifactId", "version"); err != nil {
		return err
	}
	if doc.HasManagedDependency(options["groupId"], options["artifactId"]) {
		return nil
	}
	doc.AddDependencyBundleImport(options["groupId"], options["artifactId"], options["version"])
	return nil
}

func requireOptions(options map[string]string, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(options[name]) == "" {
			return fmt.Errorf("option %s is required", name)
		}
	}
	return nil
}
