package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckMinimumVersion verifies that the running engine satisfies a
// configured minimum version. Returns nil when it does.
//
// Rules:
//   - An empty minimum disables the check
//   - An engine version of "main" (development build) always passes
//   - Otherwise both must parse as semver and engine >= minimum
func CheckMinimumVersion(engineVersion, minimumVersion string) error {
	if minimumVersion == "" {
		return nil
	}

	engineVersion = strings.TrimPrefix(engineVersion, "v")
	minimumVersion = strings.TrimPrefix(minimumVersion, "v")

	if engineVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version '%s': %w", engineVersion, err)
	}

	minimumSemver, err := semver.NewVersion(minimumVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum version '%s': %w", minimumVersion, err)
	}

	if engineSemver.LessThan(minimumSemver) {
		return fmt.Errorf("engine version %s does not satisfy required minimum %s",
			engineSemver.String(), minimumSemver.String())
	}

	return nil
}
