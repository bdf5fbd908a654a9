package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/modernizer/internal/models"
)

func TestParseBuildMatrix(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []models.JDK
	}{
		{
			name: "two configurations",
			src: `buildPlugin(
  useContainerAgent: true,
  configurations: [
    [platform: 'linux', jdk: 8],
    [platform: 'windows', jdk: 11],
])`,
			want: []models.JDK{8, 11},
		},
		{
			name: "duplicate declarations",
			src: `buildPlugin(configurations: [
    [platform: 'linux', jdk: 11],
    [platform: 'windows', jdk: 8],
    [platform: 'linux', jdk: 11],
    [platform: 'windows', jdk: '8'],
])`,
			want: []models.JDK{11, 8},
		},
		{
			name: "command form with comments",
			src: `#!/usr/bin/env groovy
/* See the documentation for more options:
 * https://github.com/jenkins-infra/pipeline-library/
 */
buildPlugin forkCount: '1C', // run parallel tests
  configurations: [
    [platform: "linux", jdk: "21"],
    [platform: "windows", jdk: 17],
  ]`,
			want: []models.JDK{21, 17},
		},
		{
			name: "no build function",
			src:  `node { sh 'mvn verify' }`,
		},
		{
			name: "no configurations",
			src:  `buildPlugin(useContainerAgent: true, timeout: 60)`,
		},
		{
			name: "expressions are skipped",
			src: `def jdks = [8, 11]
buildPlugin(failFast: !env.CHANGE_ID, configurations: [[platform: 'linux', jdk: jdks.last()], [platform: 'linux', jdk: 17]])`,
			want: []models.JDK{17},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBuildMatrix(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBuildMatrix_Unterminated(t *testing.T) {
	_, err := ParseBuildMatrix(`buildPlugin(configurations: [[jdk: '11]])`)
	assert.Error(t, err)
}
