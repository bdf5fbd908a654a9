package metadata

import "github.com/ternarybob/modernizer/internal/models"

// Accumulator carries scan results into the apply phase. It belongs to a single
// extraction run and is discarded afterwards.
type Accumulator struct {
	CommonFiles []models.ArchetypeFile
	OtherFiles  []string
	Flags       []models.Flag
	JDKs        []models.JDK

	jdkSeen map[models.JDK]bool
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		CommonFiles: make([]models.ArchetypeFile, 0),
		OtherFiles:  make([]string, 0),
		Flags:       make([]models.Flag, 0),
		JDKs:        make([]models.JDK, 0),
		jdkSeen:     make(map[models.JDK]bool),
	}
}

// AddFile classifies a slash-separated relative path into the common or other list
func (a *Accumulator) AddFile(rel string) {
	if f, ok := models.ClassifyFile(rel); ok {
		a.CommonFiles = append(a.CommonFiles, f)
		return
	}
	a.OtherFiles = append(a.OtherFiles, rel)
}

// AddJDK records a version once
func (a *Accumulator) AddJDK(jdk models.JDK) {
	if a.jdkSeen[jdk] {
		return
	}
	a.jdkSeen[jdk] = true
	a.JDKs = append(a.JDKs, jdk)
}

// AddFlags appends flags without removing repeats
func (a *Accumulator) AddFlags(flags ...models.Flag) {
	a.Flags = append(a.Flags, flags...)
}
