// Package confidence implements the confidence scorer (§4.7): a fixed
// weighted combination of retrieval quality signals, mapped to a
// three-level rating.
package confidence

import (
	"sort"

	"github.com/obernety/mindweave/internal/retriever"
)

// Level is the scorer's three-level rating.
type Level string

const (
	High   Level = "High"
	Medium Level = "Medium"
	Low    Level = "Low"
)

const (
	weightRelevance     = 0.5
	weightSourceQuality = 0.3
	weightDiversity     = 0.1
	crossModalStep      = 0.1
	crossModalCap       = 0.1

	thresholdHigh   = 0.7
	thresholdMedium = 0.4
)

// Factor is one named contributor to the overall score.
type Factor struct {
	Name        string
	Score       float64
	Description string
}

// Breakdown is the scorer's full output.
type Breakdown struct {
	Score           float64
	Level           Level
	Factors         []Factor
	StrongestFactor string
	WeakestFactor   string
	ActionableTips  []string
}

// Score computes a Breakdown for a ranked list of retrieval results against
// the query's requested top_k. An empty result list scores zero at Low, per
// the empty-corpus boundary behavior in §8. relevance and diversity are
// averaged and counted against topK rather than len(results), per §4.7's
// unique_source_files / top_k definition, so a sparse corpus that returns
// fewer than top_k chunks is scored down rather than judged only on what it
// happened to return.
func Score(results []retriever.Result, topK int) Breakdown {
	if len(results) == 0 {
		return Breakdown{
			Score: 0,
			Level: Low,
			Factors: []Factor{
				{Name: "relevance", Score: 0, Description: "no evidence retrieved"},
			},
			StrongestFactor: "relevance",
			WeakestFactor:   "relevance",
			ActionableTips:  []string{"ingest documents relevant to this query"},
		}
	}
	if topK <= 0 {
		topK = len(results)
	}

	relevance := meanRelevance(results, topK)
	sourceQuality := meanConfidence(results)
	diversity := diversityScore(results, topK)
	crossModalBonus := crossModalBonus(results)

	score := clip01(weightRelevance*relevance + weightSourceQuality*sourceQuality + weightDiversity*diversity + crossModalBonus)

	factors := []Factor{
		{Name: "relevance", Score: relevance, Description: "semantic relevance of retrieved chunks, summed and divided by top_k"},
		{Name: "source_quality", Score: sourceQuality, Description: "mean intrinsic confidence of retrieved chunks"},
		{Name: "diversity", Score: diversity, Description: "distinct source files among retrieved chunks, divided by top_k"},
		{Name: "cross_modal", Score: crossModalBonus / crossModalCap, Description: "bonus for evidence spanning multiple modalities"},
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Score > factors[j].Score })

	b := Breakdown{
		Score:           score,
		Level:           levelFor(score),
		Factors:         factors,
		StrongestFactor: factors[0].Name,
		WeakestFactor:   factors[len(factors)-1].Name,
		ActionableTips:  tipsFor(factors),
	}
	return b
}

func levelFor(score float64) Level {
	switch {
	case score >= thresholdHigh:
		return High
	case score >= thresholdMedium:
		return Medium
	default:
		return Low
	}
}

func meanRelevance(results []retriever.Result, topK int) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Relevance
	}
	return sum / float64(topK)
}

func meanConfidence(results []retriever.Result) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Chunk.Confidence
	}
	return sum / float64(len(results))
}

func diversityScore(results []retriever.Result, topK int) float64 {
	files := make(map[string]bool)
	for _, r := range results {
		files[r.Chunk.SourceFile] = true
	}
	d := float64(len(files)) / float64(topK)
	if d > 1 {
		d = 1
	}
	return d
}

func crossModalBonus(results []retriever.Result) float64 {
	modalities := make(map[string]bool)
	for _, r := range results {
		modalities[string(r.Chunk.Modality)] = true
	}
	bonus := crossModalStep * float64(len(modalities)-1)
	if bonus < 0 {
		bonus = 0
	}
	if bonus > crossModalCap {
		bonus = crossModalCap
	}
	return bonus
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tipsFor(factors []Factor) []string {
	weakest := factors[len(factors)-1]
	var tips []string
	switch weakest.Name {
	case "relevance":
		tips = append(tips, "try rephrasing the query with more specific terms")
	case "source_quality":
		tips = append(tips, "ingest higher-quality sources (clearer scans, better audio)")
	case "diversity":
		tips = append(tips, "ingest additional independent sources on this topic")
	case "cross_modal":
		tips = append(tips, "ingest images or audio covering this topic for corroboration")
	}
	return tips
}
