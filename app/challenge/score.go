package challenge

import (
	"math"
	"stridepoints/app/storage/models"
)

// Engine evaluates the challenge timeline over a user's activities. It holds
// no mutable state and performs no writes: the same activities and timeline
// always produce the same score.
type Engine struct {
	tl Timeline
}

func NewEngine(tl Timeline) (*Engine, error) {
	if err := tl.validate(); err != nil {
		return nil, err
	}
	return &Engine{tl: tl}, nil
}

func (e *Engine) Timeline() Timeline {
	return e.tl
}

type StageScore struct {
	Stage    int     `json:"stage"`
	Daily    float64 `json:"daily"`
	Advanced float64 `json:"advanced"`
	Extreme  float64 `json:"extreme"`
	Distance float64 `json:"distance"`
	Total    float64 `json:"total_stage_points"`
}

type Score struct {
	TotalPoints float64      `json:"total_points"`
	Breakdown   []StageScore `json:"breakdown"`
}

// Score computes the full multi-stage score. Activities outside the
// challenge window or of an irrelevant type are ignored, so callers may pass
// either a pre-filtered store query result or a raw activity list.
func (e *Engine) Score(activities []models.Activity) Score {
	relevant := e.filterRelevant(activities)

	var total float64
	score := Score{Breakdown: make([]StageScore, 0, len(e.tl.Stages))}
	for _, stage := range e.tl.Stages {
		stageActs := filterStage(relevant, stage)

		ss := StageScore{Stage: stage.Number}
		for _, rule := range stage.Rules {
			awarded := evaluateRule(stageActs, rule)
			switch rule.Kind {
			case RuleDaily:
				ss.Daily = awarded
			case RuleAdvanced:
				ss.Advanced = awarded
			case RuleExtreme:
				ss.Extreme = awarded
			case RuleDistance:
				ss.Distance = awarded
			}
			ss.Total += awarded
		}
		total += ss.Total
		score.Breakdown = append(score.Breakdown, ss)
	}

	score.TotalPoints = math.Round(total*100) / 100
	return score
}

func (e *Engine) filterRelevant(activities []models.Activity) []models.Activity {
	start, end := e.tl.Window()
	var out []models.Activity
	for _, a := range activities {
		if !typeIn(a.ActivityType, e.tl.ActivityTypes) {
			continue
		}
		if a.StartDate.Before(start) || a.StartDate.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// filterStage buckets by the local calendar date only, independent of
// time-of-day.
func filterStage(activities []models.Activity, stage Stage) []models.Activity {
	var out []models.Activity
	for _, a := range activities {
		d := a.LocalDate()
		if d >= stage.StartDate && d <= stage.EndDate {
			out = append(out, a)
		}
	}
	return out
}

func evaluateRule(stageActs []models.Activity, rule Rule) float64 {
	met := false
	switch rule.Kind {
	case RuleDaily, RuleAdvanced:
		met = countQualifiedDays(stageActs, rule) >= rule.MinDays
	case RuleExtreme:
		met = anyExtremeActivity(stageActs, rule)
	case RuleDistance:
		met = distanceGoalsMet(stageActs, rule)
	}
	if met {
		return rule.Points
	}
	return 0
}

// countQualifiedDays counts distinct local calendar days with at least one
// activity of an allowed type meeting its class threshold. A day counts once
// no matter how many activities qualify on it.
func countQualifiedDays(stageActs []models.Activity, rule Rule) int {
	days := make(map[string]bool)
	for _, a := range stageActs {
		day := a.LocalDate()
		if days[day] {
			continue
		}
		if !typeIn(a.ActivityType, rule.ActivityTypes) {
			continue
		}
		minDistance := 0.0
		switch classOf(a.ActivityType) {
		case classWalkRun:
			if rule.MinWalkRunMeters != nil {
				minDistance = *rule.MinWalkRunMeters
			}
		case classRide:
			if rule.MinRideMeters != nil {
				minDistance = *rule.MinRideMeters
			}
		}
		if a.Distance >= minDistance {
			days[day] = true
		}
	}
	return len(days)
}

// anyExtremeActivity reports whether a single activity meets its class
// threshold. A class with no configured threshold can never qualify.
func anyExtremeActivity(stageActs []models.Activity, rule Rule) bool {
	for _, a := range stageActs {
		if !typeIn(a.ActivityType, rule.ActivityTypes) {
			continue
		}
		var min *float64
		switch classOf(a.ActivityType) {
		case classWalkRun:
			min = rule.MinWalkRunMeters
		case classRide:
			min = rule.MinRideMeters
		}
		if min != nil && a.Distance >= *min {
			return true
		}
	}
	return false
}

// distanceGoalsMet sums stage distance per class. Every configured class
// threshold must be met; with no thresholds configured the rule cannot be
// satisfied.
func distanceGoalsMet(stageActs []models.Activity, rule Rule) bool {
	if rule.MinWalkRunMeters == nil && rule.MinRideMeters == nil {
		return false
	}
	var walkRunTotal, rideTotal float64
	for _, a := range stageActs {
		switch classOf(a.ActivityType) {
		case classWalkRun:
			walkRunTotal += a.Distance
		case classRide:
			rideTotal += a.Distance
		}
	}
	if rule.MinWalkRunMeters != nil && walkRunTotal < *rule.MinWalkRunMeters {
		return false
	}
	if rule.MinRideMeters != nil && rideTotal < *rule.MinRideMeters {
		return false
	}
	return true
}

type distanceClass int

const (
	classNone distanceClass = iota
	classWalkRun
	classRide
)

// Walk and Run share one threshold class, Ride has its own.
func classOf(activityType string) distanceClass {
	switch activityType {
	case "Walk", "Run":
		return classWalkRun
	case "Ride":
		return classRide
	default:
		return classNone
	}
}

func typeIn(activityType string, types []string) bool {
	for _, t := range types {
		if t == activityType {
			return true
		}
	}
	return false
}
