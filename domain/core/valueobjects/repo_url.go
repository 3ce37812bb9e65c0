package valueobjects

import (
	"strings"

	apperrors "librefind/pkg/errors"
	"librefind/pkg/utils"
)

// RepoURL is an optional source repository location. The zero value means
// no URL was given; a non-zero value always uses https.
type RepoURL struct {
	value string
}

func NewRepoURL(raw string) (RepoURL, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return RepoURL{}, nil
	}
	if !utils.IsSecureURL(v) {
		return RepoURL{}, apperrors.ErrInsecureRepoURL.Clone().WithDetail("value", v)
	}
	return RepoURL{value: v}, nil
}

func (u RepoURL) String() string { return u.value }

func (u RepoURL) IsZero() bool { return u.value == "" }
