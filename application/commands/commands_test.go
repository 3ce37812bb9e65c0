package commands

import (
	stderrors "errors"
	"strings"
	"testing"

	"librefind/domain/core/entities"
	"librefind/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verrs *errors.ValidationErrors
	require.True(t, stderrors.As(err, &verrs), "expected validation errors, got %v", err)
	return verrs.ToMap()
}

func TestRateAlternativeCommand_Validate(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		err := RateAlternativeCommand{AlternativeID: "osmand", Stars: 9}.Validate()
		assert.True(t, errors.HasCode(err, errors.CodeNotSignedIn))
	})

	t.Run("stars out of range", func(t *testing.T) {
		err := RateAlternativeCommand{UserID: "u1", AlternativeID: "osmand", Stars: 0}.Validate()
		assert.Contains(t, fieldErrors(t, err), "stars")
	})

	t.Run("blank alternative", func(t *testing.T) {
		err := RateAlternativeCommand{UserID: "u1", AlternativeID: "  ", Stars: 3}.Validate()
		assert.Contains(t, fieldErrors(t, err), "alternativeId")
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, RateAlternativeCommand{UserID: "u1", AlternativeID: "osmand", Stars: 5}.Validate())
	})
}

func TestSubmitAppCommand_Validate(t *testing.T) {
	valid := SubmitAppCommand{
		UserID:              "u1",
		Type:                entities.SubmissionNewAlternative,
		ProprietaryPackages: []string{"com.google.android.apps.maps"},
		App: SubmittedAppInput{
			Name:        "OsmAnd",
			PackageName: "net.osmand.plus",
			RepoURL:     "https://github.com/osmandapp/OsmAnd",
			Description: "Offline maps",
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *SubmitAppCommand)
		field  string
	}{
		{"missing targets", func(c *SubmitAppCommand) { c.ProprietaryPackages = nil }, "proprietaryPackages"},
		{"bad target", func(c *SubmitAppCommand) { c.ProprietaryPackages = []string{"Not A Package"} }, "proprietaryPackages[0]"},
		{"insecure repo", func(c *SubmitAppCommand) { c.App.RepoURL = "http://example.org/repo" }, "repoUrl"},
		{"bad package", func(c *SubmitAppCommand) { c.App.PackageName = "osmand" }, "packageName"},
		{"blank name", func(c *SubmitAppCommand) { c.App.Name = " " }, "name"},
		{"unknown type", func(c *SubmitAppCommand) { c.Type = "OTHER" }, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.ProprietaryPackages = append([]string(nil), valid.ProprietaryPackages...)
			tt.mutate(&c)
			assert.Contains(t, fieldErrors(t, c.Validate()), tt.field)
		})
	}

	t.Run("proprietary submission needs no targets", func(t *testing.T) {
		c := valid
		c.Type = entities.SubmissionNewProprietary
		c.ProprietaryPackages = nil
		assert.NoError(t, c.Validate())
	})
}

func TestSubmitFeedbackCommand_Validate(t *testing.T) {
	base := SubmitFeedbackCommand{UserID: "u1", AlternativeID: "osmand", Type: entities.FeedbackPro, Text: "Works offline"}
	require.NoError(t, base.Validate())

	long := base
	long.Text = strings.Repeat("a", 501)
	assert.Contains(t, fieldErrors(t, long.Validate()), "text")

	wrongType := base
	wrongType.Type = "MEH"
	assert.Contains(t, fieldErrors(t, wrongType.Validate()), "type")

	anon := base
	anon.UserID = ""
	assert.True(t, errors.HasCode(anon.Validate(), errors.CodeNotSignedIn))
}

func TestSetupProfileCommand_Validate(t *testing.T) {
	assert.NoError(t, SetupProfileCommand{UserID: "u1", Username: "ada"}.Validate())
	assert.Contains(t, fieldErrors(t, SetupProfileCommand{UserID: "u1", Username: "ada", Email: "nope"}.Validate()), "email")
	assert.Contains(t, fieldErrors(t, SetupProfileCommand{UserID: "u1"}.Validate()), "username")
}

func TestCastVoteCommand_Validate(t *testing.T) {
	err := CastVoteCommand{AlternativeID: "osmand", Category: entities.VotePrivacy}.Validate()
	assert.True(t, errors.HasCode(err, errors.CodeNotSignedIn))

	err = CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: "speed"}.Validate()
	assert.Contains(t, fieldErrors(t, err), "category")

	for _, c := range entities.VoteCategories() {
		assert.NoError(t, CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: c}.Validate(), c)
	}
}

func TestSubmitReportCommand_Validate(t *testing.T) {
	valid := SubmitReportCommand{UserID: "u1", Title: "Scan hangs", Description: "Stuck at 90%", Type: entities.ReportBug}
	require.NoError(t, valid.Validate())

	noType := valid
	noType.Type = ""
	assert.Contains(t, fieldErrors(t, noType.Validate()), "type")

	badPriority := valid
	badPriority.Priority = "URGENT"
	assert.Contains(t, fieldErrors(t, badPriority.Validate()), "priority")

	blank := valid
	blank.Title = "   "
	assert.Contains(t, fieldErrors(t, blank.Validate()), "title")
}
