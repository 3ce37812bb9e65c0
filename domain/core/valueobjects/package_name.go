package valueobjects

import (
	"strings"

	apperrors "librefind/pkg/errors"
	"librefind/pkg/utils"
)

// PackageName is a validated reverse-domain package identifier such as
// "org.osmand.plus". Value objects are immutable.
type PackageName struct {
	value string
}

// NewPackageName trims raw and checks it against the catalog identifier syntax.
func NewPackageName(raw string) (PackageName, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return PackageName{}, apperrors.ErrFieldRequired.Clone().WithDetail("field", "packageName")
	}
	if !utils.PackageNamePattern.MatchString(v) {
		return PackageName{}, apperrors.ErrInvalidPackageName.Clone().WithDetail("value", v)
	}
	return PackageName{value: v}, nil
}

// IsValidPackageName reports whether raw would be accepted by NewPackageName.
func IsValidPackageName(raw string) bool {
	_, err := NewPackageName(raw)
	return err == nil
}

func (p PackageName) String() string { return p.value }

// Key is the document key the catalog stores this package under.
func (p PackageName) Key() string { return SanitizeKey(p.value) }

// IsZero checks if the PackageName is the zero value
func (p PackageName) IsZero() bool { return p.value == "" }

// SanitizeKey turns any package identifier into a catalog document key by
// replacing dots with underscores. It does not validate.
func SanitizeKey(packageName string) string {
	return strings.ReplaceAll(strings.TrimSpace(packageName), ".", "_")
}
