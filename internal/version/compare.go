package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// CheckCompatibility reports whether data written by recorded can be read by
// current. Major and minor versions must match; patch versions may differ.
// A "main" development build on either side is always compatible.
func CheckCompatibility(current, recorded string) error {
	current = strings.TrimPrefix(current, "v")
	recorded = strings.TrimPrefix(recorded, "v")

	if current == "main" || recorded == "main" {
		return nil
	}

	currentSemver, err := semver.NewVersion(current)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid version '%s'", current)
	}

	recordedSemver, err := semver.NewVersion(recorded)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid recorded version '%s'", recorded)
	}

	if currentSemver.Major() != recordedSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: running %d.x.x but data was written by %d.x.x",
			currentSemver.Major(), recordedSemver.Major())
	}

	if currentSemver.Minor() != recordedSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "minor version mismatch: running %d.%d.x but data was written by %d.%d.x",
			currentSemver.Major(), currentSemver.Minor(),
			recordedSemver.Major(), recordedSemver.Minor())
	}

	return nil
}
