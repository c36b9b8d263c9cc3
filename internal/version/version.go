package version

// Version is the current version of the argo-feed engine.
// This value is overridden at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-feed/internal/version.Version=1.2.3"
// A value of "main" indicates a development build and always passes the
// minimum-version gate.
var Version = "v1.0.0"

// GetVersion returns the current engine version.
func GetVersion() string {
	return Version
}
