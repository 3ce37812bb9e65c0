package aggregates

// RatingAggregate is the running mean and count kept on an alternative.
type RatingAggregate struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Apply folds one user's rating into the aggregate. previous is the stars the
// same user had already given, or zero when this is their first rating.
//
// A first rating grows the count by one. A changed rating keeps the count and
// swaps the user's old contribution to the sum for the new one.
func (a RatingAggregate) Apply(previous, stars int) RatingAggregate {
	if previous == 0 {
		count := a.Count + 1
		return RatingAggregate{
			Average: (a.Average*float64(a.Count) + float64(stars)) / float64(count),
			Count:   count,
		}
	}

	// A rating record exists but the aggregate never counted it.
	if a.Count <= 0 {
		return RatingAggregate{Average: float64(stars), Count: 1}
	}

	return RatingAggregate{
		Average: (a.Average*float64(a.Count) - float64(previous) + float64(stars)) / float64(a.Count),
		Count:   a.Count,
	}
}
