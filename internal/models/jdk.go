package models

import "strconv"

// JDK is a java major version detected from a build matrix
type JDK int

const (
	JDK8  JDK = 8
	JDK11 JDK = 11
	JDK17 JDK = 17
	JDK21 JDK = 21
)

// String returns the major version as text
func (j JDK) String() string {
	return strconv.Itoa(int(j))
}

// IsKnown reports whether the version is one the build infrastructure provides
func (j JDK) IsKnown() bool {
	switch j {
	case JDK8, JDK11, JDK17, JDK21:
		return true
	}
	return false
}
