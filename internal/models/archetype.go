package models

import "path"

// ArchetypeFile is a conventional file path every plugin generated from the
// archetype is expected to carry
type ArchetypeFile string

const (
	ArchetypeJenkinsfile     ArchetypeFile = "Jenkinsfile"
	ArchetypeGitIgnore       ArchetypeFile = ".gitignore"
	ArchetypeCodeOwners      ArchetypeFile = ".github/CODEOWNERS"
	ArchetypeDependabot      ArchetypeFile = ".github/dependabot.yml"
	ArchetypeReleaseDrafter  ArchetypeFile = ".github/release-drafter.yml"
	ArchetypeCDWorkflow      ArchetypeFile = ".github/workflows/cd.yaml"
	ArchetypeSecurityScan    ArchetypeFile = ".github/workflows/jenkins-security-scan.yml"
	ArchetypeMavenConfig     ArchetypeFile = ".mvn/maven.config"
	ArchetypeMavenExtensions ArchetypeFile = ".mvn/extensions.xml"
	ArchetypePom             ArchetypeFile = "pom.xml"
	ArchetypeReadme          ArchetypeFile = "README.md"
	ArchetypeContributing    ArchetypeFile = "CONTRIBUTING.md"
	ArchetypeLicense         ArchetypeFile = "LICENSE.md"
)

// ArchetypeFiles returns the full catalog
func ArchetypeFiles() []ArchetypeFile {
	return []ArchetypeFile{
		ArchetypeJenkinsfile,
		ArchetypeGitIgnore,
		ArchetypeCodeOwners,
		ArchetypeDependabot,
		ArchetypeReleaseDrafter,
		ArchetypeCDWorkflow,
		ArchetypeSecurityScan,
		ArchetypeMavenConfig,
		ArchetypeMavenExtensions,
		ArchetypePom,
		ArchetypeReadme,
		ArchetypeContributing,
		ArchetypeLicense,
	}
}

// ClassifyFile matches a slash-separated path relative to the repository root
// against the catalog. The second return is false for any other file.
func ClassifyFile(rel string) (ArchetypeFile, bool) {
	rel = path.Clean(rel)
	for _, f := range ArchetypeFiles() {
		if string(f) == rel {
			return f, true
		}
	}
	return "", false
}
