package pom

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePom = `<?xml version="1.0" encoding="UTF-8"?>
<!-- Licensed under MIT -->
<project xmlns="http://maven.apache.org/POM/4.0.0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>org.jenkins-ci.plugins</groupId>
    <artifactId>plugin</artifactId>
    <version>4.80</version>
  </parent>

  <artifactId>git</artifactId>
  <packaging>hpi</packaging>
  <name>Jenkins Git plugin</name>
  <url>http://wiki.jenkins-ci.org/display/JENKINS/Git+Plugin</url>

  <properties>
    <jenkins.version>2.440.3</jenkins.version>
    <!-- old -->
    <jenkins-test-harness.version>1.0</jenkins-test-harness.version>
    <java.level>8</java.level>
    <spotbugs.effort  attr='single'  >Max</spotbugs.effort>
  </properties>

  <repositories>
    <repository>
      <id>repo.jenkins-ci.org</id>
      <url>http://repo.jenkins-ci.org/public/</url>
    </repository>
  </repositories>
</project>
`

// outline is the structural view used to compare trees across a save and re-read
type outline struct {
	Name     string
	Text     string
	Children []outline
}

func outlineOf(n *node) outline {
	o := outline{Name: n.name.Local, Text: n.value()}
	for _, c := range n.elements("") {
		o.Children = append(o.Children, outlineOf(c))
	}
	return o
}

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

func assertRoundTrip(t *testing.T, doc *Document) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, doc.Save(path))

	reread, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, string(doc.Bytes()), string(reread.Bytes()))
	if diff := cmp.Diff(outlineOf(doc.root), outlineOf(reread.root)); diff != "" {
		t.Errorf("tree changed after save (-want +got):\n%s", diff)
	}
}

func TestParse_PreservesBytes(t *testing.T) {
	doc := mustParse(t, samplePom)
	assert.Equal(t, samplePom, string(doc.Bytes()))
	assert.False(t, doc.Modified())
}

func TestParse_PreservesCRLFAndSelfClosing(t *testing.T) {
	src := "<project>\r\n  <parent/>\r\n  <![CDATA[ a < b ]]>\r\n  <?pi data?>\r\n</project>\r\n"
	doc := mustParse(t, src)
	assert.Equal(t, src, string(doc.Bytes()))
	assert.Equal(t, "\r\n", doc.newline)
}

func TestParse_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":           "",
		"only prolog":     `<?xml version="1.0"?>`,
		"mismatched":      "<project><parent></version></project>",
		"unclosed":        "<project><parent>",
		"two roots":       "<project/><project/>",
		"text after root": "<project/>trailing",
		"stray end":       "</project>",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "pom.xml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformed))
}

func TestRemovePropertiesByName_RemovesPrecedingComment(t *testing.T) {
	doc := mustParse(t, samplePom)

	assert.True(t, doc.RemovePropertiesByName("jenkins-test-harness.version"))

	want := strings.Replace(samplePom,
		"    <!-- old -->\n    <jenkins-test-harness.version>1.0</jenkins-test-harness.version>\n", "", 1)
	assert.Equal(t, want, string(doc.Bytes()))

	_, ok := doc.Property("jenkins.version")
	assert.True(t, ok)
	_, ok = doc.Property("java.level")
	assert.True(t, ok)
	assertRoundTrip(t, doc)
}

func TestRemovePropertiesByName_InlineBlock(t *testing.T) {
	doc := mustParse(t, `<project><properties><!-- old --><jenkins-test-harness.version>1.0</jenkins-test-harness.version></properties></project>`)

	assert.True(t, doc.RemovePropertiesByName("jenkins-test-harness.version"))
	assert.Equal(t, `<project><properties></properties></project>`, string(doc.Bytes()))
}

func TestRemovePropertiesByName_Idempotent(t *testing.T) {
	doc := mustParse(t, samplePom)

	doc.RemovePropertiesByName("jenkins-test-harness.version", "java.level")
	once := string(doc.Bytes())

	assert.False(t, doc.RemovePropertiesByName("jenkins-test-harness.version", "java.level"))
	assert.Equal(t, once, string(doc.Bytes()))
}

func TestRemovePropertiesByName_NoPropertiesBlock(t *testing.T) {
	src := "<project>\n  <artifactId>git</artifactId>\n</project>\n"
	doc := mustParse(t, src)

	assert.False(t, doc.RemovePropertiesByName("java.level"))
	assert.Equal(t, src, string(doc.Bytes()))
	assert.False(t, doc.Modified())
}

func TestEnsurePathReferenceUnderParent(t *testing.T) {
	doc := mustParse(t, samplePom)

	assert.True(t, doc.EnsurePathReferenceUnderParent())
	want := strings.Replace(samplePom,
		"    <version>4.80</version>\n  </parent>",
		"    <version>4.80</version>\n    <relativePath />\n  </parent>", 1)
	assert.Equal(t, want, string(doc.Bytes()))

	first := string(doc.Bytes())
	assert.False(t, doc.EnsurePathReferenceUnderParent())
	assert.Equal(t, first, string(doc.Bytes()))
	assertRoundTrip(t, doc)
}

func TestEnsurePathReferenceUnderParent_ExistingOrMissingParent(t *testing.T) {
	withPath := "<project>\n  <parent>\n    <relativePath/>\n  </parent>\n</project>\n"
	doc := mustParse(t, withPath)
	assert.False(t, doc.EnsurePathReferenceUnderParent())
	assert.Equal(t, withPath, string(doc.Bytes()))

	noParent := "<project>\n  <artifactId>git</artifactId>\n</project>\n"
	doc = mustParse(t, noParent)
	assert.False(t, doc.EnsurePathReferenceUnderParent())
	assert.Equal(t, noParent, string(doc.Bytes()))
}

func TestReplaceInsecureURLs(t *testing.T) {
	doc := mustParse(t, samplePom)

	assert.True(t, doc.ReplaceInsecureURLs())
	out := string(doc.Bytes())
	assert.Contains(t, out, "<url>https://wiki.jenkins-ci.org/display/JENKINS/Git+Plugin</url>")
	assert.Contains(t, out, "<url>https://repo.jenkins-ci.org/public/</url>")
	// Namespace declarations are attributes, not url elements
	assert.Contains(t, out, `xmlns="http://maven.apache.org/POM/4.0.0"`)
	assertRoundTrip(t, doc)

	secured := string(doc.Bytes())
	assert.False(t, doc.ReplaceInsecureURLs())
	assert.Equal(t, secured, string(doc.Bytes()))
}

func TestReplaceInsecureURLs_EveryOccurrence(t *testing.T) {
	doc := mustParse(t, "<project>\n  <url>http://mirror.example/redirect?to=http://repo.example/public/</url>\n</project>\n")

	assert.True(t, doc.ReplaceInsecureURLs())
	assert.Equal(t, "<project>\n  <url>https://mirror.example/redirect?to=https://repo.example/public/</url>\n</project>\n", string(doc.Bytes()))
}

func TestReplaceInsecureURLs_NothingToReplace(t *testing.T) {
	src := "<project>\n  <url>https://github.com/jenkinsci/git-plugin</url>\n</project>\n"
	doc := mustParse(t, src)

	assert.False(t, doc.ReplaceInsecureURLs())
	assert.Equal(t, src, string(doc.Bytes()))
	assert.False(t, doc.Modified())
}

func TestUpdateOrInsertParent(t *testing.T) {
	doc := mustParse(t, samplePom)

	doc.UpdateOrInsertParent("org.jenkins-ci.plugins", "plugin", "5.9")
	want := strings.Replace(samplePom, "<version>4.80</version>", "<version>5.9</version>", 1)
	assert.Equal(t, want, string(doc.Bytes()))
	assert.Equal(t, "5.9", doc.ParentVersion())

	doc.UpdateOrInsertParent("org.jenkins-ci.plugins", "plugin", "5.9")
	assert.Equal(t, want, string(doc.Bytes()))
	assertRoundTrip(t, doc)
}

func TestUpdateOrInsertParent_Missing(t *testing.T) {
	doc := mustParse(t, "<project>\n  <artifactId>git</artifactId>\n</project>\n")

	doc.UpdateOrInsertParent("org.jenkins-ci.plugins", "plugin", "5.9")

	want := "<project>\n" +
		"  <artifactId>git</artifactId>\n" +
		"  <parent>\n" +
		"    <groupId>org.jenkins-ci.plugins</groupId>\n" +
		"    <artifactId>plugin</artifactId>\n" +
		"    <version>5.9</version>\n" +
		"  </parent>\n" +
		"</project>\n"
	assert.Equal(t, want, string(doc.Bytes()))

	doc.UpdateOrInsertParent("org.jenkins-ci.plugins", "plugin", "5.9")
	assert.Equal(t, want, string(doc.Bytes()))
}

func TestUpdateOrInsertParent_SelfClosingChild(t *testing.T) {
	doc := mustParse(t, "<project><parent><groupId>g</groupId><artifactId>a</artifactId><version/></parent></project>")

	doc.UpdateOrInsertParent("g", "a", "1.0")
	assert.Equal(t, "<project><parent><groupId>g</groupId><artifactId>a</artifactId><version>1.0</version></parent></project>", string(doc.Bytes()))
}

func TestSetMinimumPlatformVersion(t *testing.T) {
	doc := mustParse(t, samplePom)

	doc.SetMinimumPlatformVersion("2.479.1")
	want := strings.Replace(samplePom, "<jenkins.version>2.440.3</jenkins.version>", "<jenkins.version>2.479.1</jenkins.version>", 1)
	assert.Equal(t, want, string(doc.Bytes()))

	doc.SetMinimumPlatformVersion("2.479.1")
	assert.Equal(t, want, string(doc.Bytes()))

	v, ok := doc.Property(PlatformVersionProperty)
	assert.True(t, ok)
	assert.Equal(t, "2.479.1", v)
}

func TestSetMinimumPlatformVersion_CreatesBlock(t *testing.T) {
	doc := mustParse(t, "<project>\n    <artifactId>git</artifactId>\n</project>\n")

	doc.SetMinimumPlatformVersion("2.479.1")

	want := "<project>\n" +
		"    <artifactId>git</artifactId>\n" +
		"    <properties>\n" +
		"        <jenkins.version>2.479.1</jenkins.version>\n" +
		"    </properties>\n" +
		"</project>\n"
	assert.Equal(t, want, string(doc.Bytes()))
	assertRoundTrip(t, doc)
}

func TestAddDependencyBundleImport(t *testing.T) {
	doc := mustParse(t, "<project>\n  <artifactId>git</artifactId>\n</project>\n")
	assert.False(t, doc.HasManagedDependency("io.jenkins.tools.bom", "bom-2.440.x"))

	doc.AddDependencyBundleImport("io.jenkins.tools.bom", "bom-2.440.x", "3000.v1")

	want := "<project>\n" +
		"  <artifactId>git</artifactId>\n" +
		"  <dependencyManagement>\n" +
		"    <dependencies>\n" +
		"      <dependency>\n" +
		"        <groupId>io.jenkins.tools.bom</groupId>\n" +
		"        <artifactId>bom-2.440.x</artifactId>\n" +
		"        <version>3000.v1</version>\n" +
		"        <type>pom</type>\n" +
		"        <scope>import</scope>\n" +
		"      </dependency>\n" +
		"    </dependencies>\n" +
		"  </dependencyManagement>\n" +
		"</project>\n"
	assert.Equal(t, want, string(doc.Bytes()))
	assert.True(t, doc.HasManagedDependency("io.jenkins.tools.bom", "bom-2.440.x"))
	assertRoundTrip(t, doc)
}

func TestAddDependencyBundleImport_NotIdempotent(t *testing.T) {
	doc := mustParse(t, samplePom)

	doc.AddDependencyBundleImport("io.jenkins.tools.bom", "bom-2.440.x", "3000.v1")
	doc.AddDependencyBundleImport("io.jenkins.tools.bom", "bom-2.440.x", "3000.v1")

	deps := doc.root.child(dependencyManagement).child(dependenciesElement)
	assert.Len(t, deps.elements(dependencyElement), 2)
	assert.Equal(t, 2, strings.Count(string(doc.Bytes()), "<scope>import</scope>"))
}

func TestReads(t *testing.T) {
	doc := mustParse(t, samplePom)

	assert.Equal(t, "hpi", doc.Packaging())
	assert.Equal(t, "git", doc.ArtifactID())
	assert.Equal(t, "4.80", doc.ParentVersion())

	v, ok := doc.Property("spotbugs.effort")
	assert.True(t, ok)
	assert.Equal(t, "Max", v)

	_, ok = doc.Property("missing")
	assert.False(t, ok)
}

func TestSave_InvalidPathKeepsEdits(t *testing.T) {
	doc := mustParse(t, samplePom)
	doc.SetMinimumPlatformVersion("2.479.1")

	err := doc.Save(filepath.Join(t.TempDir(), "missing", "dir", "pom.xml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, doc.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<jenkins.version>2.479.1</jenkins.version>")
}

func TestSetText_Escapes(t *testing.T) {
	doc := mustParse(t, "<project><parent><groupId>g</groupId><artifactId>a</artifactId><version>1</version></parent></project>")

	doc.UpdateOrInsertParent("g", "a", "1&2")
	assert.Contains(t, string(doc.Bytes()), "<version>1&amp;2</version>")
	assert.Equal(t, "1&2", doc.ParentVersion())
	assertRoundTrip(t, doc)
}
