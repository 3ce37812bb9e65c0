package valueobjects

import (
	"strings"
	"testing"

	apperrors "librefind/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPackageName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"reverse domain", "com.example.app", true},
		{"underscores and digits", "org.fdroid_2.client9", true},
		{"surrounding whitespace", "  org.osmand.plus ", true},
		{"uppercase", "Example.App", false},
		{"single segment", "example", false},
		{"trailing dot", "com.example.", false},
		{"leading digit", "1com.example.app", false},
		{"hyphen", "com.ex-ample.app", false},
		{"blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPackageName(tt.input)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.input), p.String())
				assert.False(t, p.IsZero())
			} else {
				assert.Error(t, err)
			}
			assert.Equal(t, tt.valid, IsValidPackageName(tt.input))
		})
	}
}

func TestPackageNameKey(t *testing.T) {
	p, err := NewPackageName("com.google.android.apps.maps")
	require.NoError(t, err)
	assert.Equal(t, "com_google_android_apps_maps", p.Key())
	assert.Equal(t, "com_whatsapp", SanitizeKey("com.whatsapp"))
}

func TestNewStars(t *testing.T) {
	for n := MinStars; n <= MaxStars; n++ {
		s, err := NewStars(n)
		require.NoError(t, err)
		assert.Equal(t, n, s.Int())
	}

	for _, n := range []int{-1, 0, 6} {
		_, err := NewStars(n)
		require.Error(t, err)
		var de *apperrors.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "STARS_OUT_OF_RANGE", de.Code)
		assert.Equal(t, n, de.Details["value"])
	}
}

func TestNewRepoURL(t *testing.T) {
	u, err := NewRepoURL("")
	require.NoError(t, err)
	assert.True(t, u.IsZero())

	u, err = NewRepoURL("https://github.com/osmandapp/OsmAnd")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/osmandapp/OsmAnd", u.String())

	for _, raw := range []string{"http://github.com/x/y", "ftp://example.org", "github.com/x/y", "https://"} {
		_, err := NewRepoURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestRecordID(t *testing.T) {
	id := NewRecordID()
	parsed, err := ParseRecordID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseRecordID("not-a-uuid")
	assert.Error(t, err)
}
