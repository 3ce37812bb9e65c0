package entities

import "time"

// Alternative is a catalogued FOSS app offered in place of a proprietary
// target. RatingAvg, RatingCount and Votes are server-side aggregates;
// UserRating is the viewer's own rating and is never stored on the
// alternative record.
type Alternative struct {
	ID          string   `json:"id"`
	PackageName string   `json:"packageName"`
	Name        string   `json:"name"`
	License     string   `json:"license"`
	RepoURL     string   `json:"repoUrl"`
	FdroidID    string   `json:"fdroidId"`
	IconURL     string   `json:"iconUrl,omitempty"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	Features    []string `json:"features"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	RatingAvg   float64  `json:"ratingAvg"`
	RatingCount int      `json:"ratingCount"`
	// Votes counts endorsements per VoteCategory key.
	Votes      map[string]int `json:"votes,omitempty"`
	UserRating *int           `json:"userRating,omitempty"`
}

// WithUserRating returns a copy of a carrying the viewer's stars.
func (a Alternative) WithUserRating(stars int) Alternative {
	s := stars
	a.UserRating = &s
	return a
}

// VoteCategory is a quality an alternative can be endorsed for.
type VoteCategory string

const (
	VoteUsability VoteCategory = "usability"
	VotePrivacy   VoteCategory = "privacy"
	VoteFeatures  VoteCategory = "features"
)

// VoteCategories lists every category in display order.
func VoteCategories() []VoteCategory {
	return []VoteCategory{VoteUsability, VotePrivacy, VoteFeatures}
}

func (c VoteCategory) IsValid() bool {
	switch c {
	case VoteUsability, VotePrivacy, VoteFeatures:
		return true
	}
	return false
}

// CategoryVote records that a user endorsed an alternative for one
// category. A user holds at most one vote per category and alternative.
type CategoryVote struct {
	AlternativeID string       `json:"alternativeId"`
	UserID        string       `json:"userId"`
	Category      VoteCategory `json:"category"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ProprietaryTarget is a catalogued proprietary app together with the ids of
// its FOSS alternatives, in curator order.
type ProprietaryTarget struct {
	PackageName  string   `json:"packageName"`
	Name         string   `json:"name"`
	Category     string   `json:"category,omitempty"`
	Alternatives []string `json:"alternatives"`
}
