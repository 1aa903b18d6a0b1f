package matching

import (
	"fmt"

	"github.com/Ramsey-B/banyan/pkg/models"
)

// Recommend maps the detected conditions of an analysis to actionable
// recommendations. Pure mapping, no side effects.
func Recommend(analysis *models.MergeAnalysis, offsetAmbiguous bool) []models.Recommendation {
	recs := []models.Recommendation{}

	if len(analysis.Matches) == 0 {
		recs = append(recs, models.Recommendation{
			Code:     models.RecommendationNoMatchMerge,
			Severity: models.RecommendationHigh,
			Message:  "no person matches were found between the two families; every secondary person will be imported as new",
		})
	}

	hard, soft := 0, 0
	for _, c := range analysis.Conflicts {
		if c.Severity == models.ConflictHard {
			hard++
		} else {
			soft++
		}
	}
	if hard > 0 {
		recs = append(recs, models.Recommendation{
			Code:     models.RecommendationHardConflicts,
			Severity: models.RecommendationHigh,
			Message:  fmt.Sprintf("%d matches have hard conflicts; review them before accepting", hard),
		})
	}
	if soft > 0 {
		recs = append(recs, models.Recommendation{
			Code:     models.RecommendationSoftConflicts,
			Severity: models.RecommendationWarning,
			Message:  fmt.Sprintf("%d matches have soft conflicts", soft),
		})
	}

	possible := 0
	for _, m := range analysis.Matches {
		if m.Confidence == models.MatchPossible {
			possible++
		}
	}
	if possible > 0 {
		recs = append(recs, models.Recommendation{
			Code:     models.RecommendationLowConfidence,
			Severity: models.RecommendationWarning,
			Message:  fmt.Sprintf("%d matches are low confidence; confirm them manually", possible),
		})
	}

	if offsetAmbiguous {
		recs = append(recs, models.Recommendation{
			Code:     models.RecommendationOffsetAmbiguous,
			Severity: models.RecommendationWarning,
			Message:  "matched persons disagree on the generation offset; verify the suggested offset before executing",
		})
	}

	for _, d := range analysis.Defects {
		switch d.Kind {
		case models.DefectFragmented:
			recs = append(recs, models.Recommendation{
				Code:     models.RecommendationFragmentedGraph,
				Severity: models.RecommendationWarning,
				Message:  fmt.Sprintf("family %s: %s", d.FamilyCode, d.Message),
			})
		case models.DefectOrphan:
			recs = append(recs, models.Recommendation{
				Code:     models.RecommendationOrphanNodes,
				Severity: models.RecommendationWarning,
				Message:  fmt.Sprintf("family %s: %s", d.FamilyCode, d.Message),
			})
		case models.DefectCycle:
			recs = append(recs, models.Recommendation{
				Code:     models.RecommendationParentCycles,
				Severity: models.RecommendationHigh,
				Message:  fmt.Sprintf("family %s: %s", d.FamilyCode, d.Message),
			})
		}
	}

	return recs
}
