// Package schema names the document schema versions this build understands.
package schema

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	apperrors "osl/internal/platform/errors"
)

// Current is the version every document is written at.
const Current = "3.1"

// Legacy is assumed for documents that carry no version field.
const Legacy = "1.0"

var supported = []string{"1.0", "2.0", "3.0", "3.1"}

// Supported returns the known versions, oldest first.
func Supported() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

func IsSupported(version string) bool {
	for _, v := range supported {
		if v == version {
			return true
		}
	}
	return false
}

// Parse validates a version string such as "3.0".
func Parse(version string) (*semver.Version, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, apperrors.Mark(apperrors.Wrapf(err, "parse schema version %q", version), apperrors.ErrUnsupportedVersion)
	}
	return v, nil
}

// Compare orders two versions; unparsable versions sort first.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// Sort orders versions ascending in place.
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool { return Compare(versions[i], versions[j]) < 0 })
}

// Check returns ErrUnsupportedVersion unless version is known.
func Check(version string) error {
	if _, err := Parse(version); err != nil {
		return err
	}
	if !IsSupported(version) {
		return apperrors.Wrapf(apperrors.ErrUnsupportedVersion, "version %q (supported: %v)", version, supported)
	}
	return nil
}
