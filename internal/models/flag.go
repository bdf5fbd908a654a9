package models

// Flag is a boolean fact about a plugin, derived either structurally from its
// descriptor or externally from the update center
type Flag string

const (
	// FlagScmHTTPS is set when the scm connection uses an https git url
	FlagScmHTTPS Flag = "SCM_HTTPS"

	// FlagMavenRepositoriesHTTPS is set when every declared repository url uses https
	FlagMavenRepositoriesHTTPS Flag = "MAVEN_REPOSITORIES_HTTPS"

	// FlagLicenseSet is set when a license name is declared
	FlagLicenseSet Flag = "LICENSE_SET"

	// FlagDeveloperSet is set when a developer id is declared
	FlagDeveloperSet Flag = "DEVELOPER_SET"

	// FlagIsAPIPlugin is set when the update center labels the plugin as an api plugin
	FlagIsAPIPlugin Flag = "IS_API_PLUGIN"

	// FlagIsDeprecated is set when the update center lists the plugin as deprecated
	FlagIsDeprecated Flag = "IS_DEPRECATED"
)

// AllFlags returns every known flag in declaration order
func AllFlags() []Flag {
	return []Flag{
		FlagScmHTTPS,
		FlagMavenRepositoriesHTTPS,
		FlagLicenseSet,
		FlagDeveloperSet,
		FlagIsAPIPlugin,
		FlagIsDeprecated,
	}
}

// IsValid checks if the flag is a known value
func (f Flag) IsValid() bool {
	for _, known := range AllFlags() {
		if f == known {
			return true
		}
	}
	return false
}
