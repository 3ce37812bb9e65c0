package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"librefind/application/pipeline"
	"librefind/application/services"
	"librefind/domain/core/entities"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func renderInventory(out io.Writer, s pipeline.State) {
	if s.Error != "" {
		fmt.Fprintf(out, "error: %s\n", s.Error)
		return
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "STATUS\tLABEL\tPACKAGE")
	for _, app := range s.Apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", app.Status, app.Label, app.PackageName)
	}
	tw.Flush()

	if s.Score == nil {
		return
	}
	score := s.Score
	fmt.Fprintf(out, "\n%d apps: %d FOSS, %d proprietary, %d unknown\n",
		score.TotalApps, score.FOSSCount, score.ProprietaryCount, score.UnknownCount)
	if score.Tier == "" {
		fmt.Fprintln(out, "Sovereignty: n/a")
		return
	}
	fmt.Fprintf(out, "Sovereignty: %.0f%% (%s)\n", score.Percentage, score.Tier)
}

func renderTargets(out io.Writer, targets []*entities.ProprietaryTarget) {
	tw := newTable(out)
	fmt.Fprintln(tw, "PACKAGE\tNAME\tCATEGORY\tALTERNATIVES")
	for _, t := range targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.PackageName, t.Name, t.Category, len(t.Alternatives))
	}
	tw.Flush()
}

func renderAlternatives(out io.Writer, alts []entities.Alternative) {
	if len(alts) == 0 {
		fmt.Fprintln(out, "No alternatives catalogued.")
		return
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tNAME\tLICENSE\tRATING\tVOTES\tYOURS")
	for _, alt := range alts {
		yours := "-"
		if alt.UserRating != nil {
			yours = fmt.Sprintf("%d", *alt.UserRating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%d\t%s\n",
			alt.ID, alt.Name, alt.License, alt.RatingAvg, alt.RatingCount, yours)
	}
	tw.Flush()
}

func renderRating(out io.Writer, r *services.RatingResult) {
	if r.IsNew {
		fmt.Fprintf(out, "Rated %s %d stars.", r.AlternativeID, r.Stars)
	} else {
		fmt.Fprintf(out, "Changed %s from %d to %d stars.", r.AlternativeID, r.PreviousStars, r.Stars)
	}
	fmt.Fprintf(out, " Now %.1f from %d ratings.\n", r.Average, r.Count)
}

func renderVote(out io.Writer, v *services.VoteResult) {
	fmt.Fprintf(out, "Voted %s for %s.", v.AlternativeID, v.Category)
	for _, c := range entities.VoteCategories() {
		fmt.Fprintf(out, " %s %d", c, v.Votes[string(c)])
	}
	fmt.Fprintln(out)
}

func renderDuplicate(out io.Writer, d services.DuplicateResult) {
	switch d.Kind {
	case services.MatchProprietary:
		fmt.Fprintf(out, "Already catalogued as a proprietary app: %s\n", d.Name)
	case services.MatchFOSS:
		fmt.Fprintf(out, "Already catalogued as an alternative: %s\n", d.Name)
	case services.MatchCheckFailed:
		fmt.Fprintln(out, "Could not check the catalog; try again later.")
	default:
		fmt.Fprintln(out, "Not in the catalog.")
	}
}
