package version

// Version is the AlgoScript release. It is set at build time with
// -ldflags "-X github.com/rxtech-lab/algoscript/internal/version.Version=v1.2.3".
// "main" marks a development build.
var Version = "v0.1.0"

// GetVersion returns the current version.
func GetVersion() string {
	return Version
}
