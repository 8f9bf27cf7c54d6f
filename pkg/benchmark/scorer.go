package benchmark

import "sort"

// Direction says which way a metric improves.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// Target is one performance goal a measured metric is scored against.
type Target struct {
	Category  Category  `json:"category"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
}

// DefaultTargets returns the production performance goals.
func DefaultTargets() []Target {
	return []Target{
		{Category: CategoryEmbedding, Metric: "throughput", Value: 10, Direction: HigherIsBetter},
		{Category: CategoryEmbedding, Metric: "avg_time_per_text", Value: 0.5, Direction: LowerIsBetter},
		{Category: CategoryEmbedding, Metric: "batch_efficiency", Value: 3.0, Direction: HigherIsBetter},
		{Category: CategorySearch, Metric: "avg_search_time", Value: 0.1, Direction: LowerIsBetter},
		{Category: CategorySearch, Metric: "queries_per_second", Value: 20, Direction: HigherIsBetter},
		{Category: CategoryEndToEnd, Metric: "avg_response_time", Value: 3.0, Direction: LowerIsBetter},
		{Category: CategoryEndToEnd, Metric: "questions_per_minute", Value: 20, Direction: HigherIsBetter},
	}
}

// Score is the graded outcome of one benchmark run: a 0-100 score per
// category plus their unweighted mean.
type Score struct {
	Categories map[Category]float64 `json:"categories"`
	Overall    float64              `json:"overall"`
}

// ScoreResults grades the optimized-side measurements against the targets.
//
// Each target scores min(100, measured/target*100) when higher is better and
// min(100, target/measured*100) when lower is better, so exactly meeting a
// target scores 100 and overshooting is not rewarded. A category score is the
// mean over its targets whose metrics were actually measured; a category with
// targets but no measurements at all scores 0. The overall score is the mean
// over the targeted categories.
func ScoreResults(measured map[Category]map[string]float64, targets []Target) Score {
	byCategory := make(map[Category][]Target)
	for _, target := range targets {
		byCategory[target.Category] = append(byCategory[target.Category], target)
	}

	score := Score{Categories: make(map[Category]float64, len(byCategory))}

	categories := make([]Category, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var sum float64
	for _, category := range categories {
		value := scoreCategory(measured[category], byCategory[category])
		score.Categories[category] = value
		sum += value
	}
	if len(categories) > 0 {
		score.Overall = sum / float64(len(categories))
	}
	return score
}

func scoreCategory(metrics map[string]float64, targets []Target) float64 {
	var sum float64
	scored := 0

	for _, target := range targets {
		value, ok := metrics[target.Metric]
		if !ok {
			continue
		}
		sum += scoreTarget(value, target)
		scored++
	}

	if scored == 0 {
		return 0
	}
	return sum / float64(scored)
}

func scoreTarget(measured float64, target Target) float64 {
	var score float64
	switch target.Direction {
	case LowerIsBetter:
		if measured <= 0 {
			return 100
		}
		score = target.Value / measured * 100
	default:
		if target.Value <= 0 {
			return 100
		}
		score = measured / target.Value * 100
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
