package valueobjects

import apperrors "librefind/pkg/errors"

const (
	MinStars = 1
	MaxStars = 5
)

// Stars is a rating value in [MinStars, MaxStars].
type Stars int

// NewStars rejects values outside the rating scale.
func NewStars(n int) (Stars, error) {
	if n < MinStars || n > MaxStars {
		return 0, apperrors.ErrStarsOutOfRange.Clone().WithDetail("value", n)
	}
	return Stars(n), nil
}

func (s Stars) Int() int { return int(s) }
