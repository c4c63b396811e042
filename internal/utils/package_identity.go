package utils

import "fmt"

// VersionIdentifier returns the "<identifier>-<version>" name shared by the
// archive cache entry and the install directory of a package version.
func VersionIdentifier(identifier, version string) string {
	return fmt.Sprintf("%s-%s", identifier, version)
}
