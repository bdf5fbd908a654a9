package recipes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/models"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(arbor.NewNoOpLogger())
	require.NoError(t, err)
	return catalog
}

func TestCatalog_EveryRecipeIsComplete(t *testing.T) {
	catalog := newTestCatalog(t)
	require.NotEmpty(t, catalog.All())

	for _, recipe := range catalog.All() {
		t.Run(recipe.ShortName(), func(t *testing.T) {
			assert.True(t, strings.HasPrefix(recipe.Name, models.RecipePrefix))
			assert.NotEmpty(t, recipe.DisplayName)
			assert.NotEmpty(t, recipe.Description)
			assert.NotEmpty(t, recipe.Tags)
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	catalog := newTestCatalog(t)

	short, err := catalog.Lookup("FetchMetadata")
	require.NoError(t, err)
	full, err := catalog.Lookup("io.jenkins.tools.pluginmodernizer.FetchMetadata")
	require.NoError(t, err)
	assert.Same(t, short, full)
	assert.False(t, short.RequiresBuild())

	_, err = catalog.Lookup("DoesNotExist")
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing tags", "recipes:\n  - name: a\n    displayName: A\n    description: d\n"},
		{"missing description", "recipes:\n  - name: a\n    displayName: A\n    tags: [x]\n"},
		{"duplicate", "recipes:\n  - {name: a, displayName: A, description: d, tags: [x]}\n  - {name: a, displayName: A, description: d, tags: [x]}\n"},
		{"bad precondition", "recipes:\n  - {name: a, displayName: A, description: d, tags: [x], precondition: 'parentVersion +'}\n"},
		{"non boolean precondition", "recipes:\n  - {name: a, displayName: A, description: d, tags: [x], precondition: 'parentVersion'}\n"},
		{"not yaml", "recipes: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml), arbor.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}

func TestCheckPrecondition(t *testing.T) {
	catalog := newTestCatalog(t)

	withBom := &models.Metadata{PluginName: "git", BomArtifactID: "bom-2.440.x", ParentVersion: "4.80"}
	withoutBom := &models.Metadata{PluginName: "git"}

	tests := []struct {
		recipe   string
		metadata *models.Metadata
		want     bool
	}{
		{"FetchMetadata", withoutBom, true},
		{"AddPluginsBom", withoutBom, true},
		{"AddPluginsBom", withBom, false},
		{"UpdateBom", withBom, true},
		{"UpgradeParentPom", withBom, true},
		{"UpgradeParentPom", withoutBom, false},
		{"UseHttpsRepositories", &models.Metadata{Flags: []models.Flag{models.FlagMavenRepositoriesHTTPS}}, false},
		{"UseHttpsRepositories", withoutBom, true},
		{"RemoveOffendingProperties", &models.Metadata{Properties: map[string]string{"java.level": "8"}}, true},
		{"RemoveOffendingProperties", withoutBom, false},
	}

	for _, tt := range tests {
		t.Run(tt.recipe, func(t *testing.T) {
			recipe, err := catalog.Lookup(tt.recipe)
			require.NoError(t, err)

			got, err := catalog.CheckPrecondition(recipe, tt.metadata)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckPrecondition_NoMetadata(t *testing.T) {
	catalog := newTestCatalog(t)
	recipe, err := catalog.Lookup("AddPluginsBom")
	require.NoError(t, err)

	_, err = catalog.CheckPrecondition(recipe, nil)
	assert.Error(t, err)
}

func TestCheckPrecondition_RecipeOutsideCatalog(t *testing.T) {
	catalog := newTestCatalog(t)
	recipe := &models.Recipe{Name: "Custom", Precondition: `"SCM_HTTPS" in flags && 11 in jdks`}

	got, err := catalog.CheckPrecondition(recipe, &models.Metadata{
		Flags: []models.Flag{models.FlagScmHTTPS},
		JDKs:  []models.JDK{models.JDK11},
	})
	require.NoError(t, err)
	assert.True(t, got)
}
