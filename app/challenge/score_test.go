package challenge

import (
	"fmt"
	"testing"
	"time"

	"stridepoints/app/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Timeline used throughout: stage 1 runs 2024-08-15..2024-09-03, stage 2
// 2024-09-04..2024-09-23, stage 5 2024-11-03..2024-11-22.
func testEngine(t *testing.T) *Engine {
	t.Helper()
	tl, err := NewTimeline("2024-08-15")
	require.NoError(t, err)
	engine, err := NewEngine(tl)
	require.NoError(t, err)
	return engine
}

func act(localDay, activityType string, distance float64) models.Activity {
	d, err := time.Parse("2006-01-02", localDay)
	if err != nil {
		panic(err)
	}
	return models.Activity{
		ActivityType:   activityType,
		Distance:       distance,
		StartDate:      d.Add(6 * time.Hour),
		StartDateLocal: d.Add(8 * time.Hour),
	}
}

func TestScore_DailyRuleMinDaysBoundary(t *testing.T) {
	engine := testEngine(t)

	var acts []models.Activity
	for i := 0; i < 12; i++ {
		acts = append(acts, act(fmt.Sprintf("2024-08-%02d", 15+i), "Run", 5000))
	}
	score := engine.Score(acts)
	assert.Equal(t, 100.0, score.Breakdown[0].Daily)

	score = engine.Score(acts[:11])
	assert.Equal(t, 0.0, score.Breakdown[0].Daily)
}

func TestScore_SameDayCountsOnce(t *testing.T) {
	engine := testEngine(t)

	var acts []models.Activity
	for i := 0; i < 12; i++ {
		acts = append(acts, act("2024-08-15", "Run", 5000))
	}
	score := engine.Score(acts)
	assert.Equal(t, 0.0, score.Breakdown[0].Daily)
}

func TestScore_RideHasOwnDailyThreshold(t *testing.T) {
	engine := testEngine(t)

	var qualifying, short []models.Activity
	for i := 0; i < 12; i++ {
		day := fmt.Sprintf("2024-08-%02d", 15+i)
		qualifying = append(qualifying, act(day, "Ride", 20000))
		short = append(short, act(day, "Ride", 19999))
	}
	assert.Equal(t, 100.0, engine.Score(qualifying).Breakdown[0].Daily)
	assert.Equal(t, 0.0, engine.Score(short).Breakdown[0].Daily)
}

func TestScore_AdvancedRule(t *testing.T) {
	engine := testEngine(t)

	var acts []models.Activity
	for i := 0; i < 6; i++ {
		acts = append(acts, act(fmt.Sprintf("2024-08-%02d", 15+i), "Walk", 6000))
	}
	score := engine.Score(acts)
	assert.Equal(t, 200.0, score.Breakdown[0].Advanced)
	// 6 days is below the daily rule's 12-day minimum.
	assert.Equal(t, 0.0, score.Breakdown[0].Daily)
	assert.Equal(t, 200.0, score.TotalPoints)
}

func TestScore_ExtremeRuleDistanceBoundary(t *testing.T) {
	engine := testEngine(t)

	score := engine.Score([]models.Activity{act("2024-08-20", "Run", 7500)})
	assert.Equal(t, 500.0, score.Breakdown[0].Extreme)

	score = engine.Score([]models.Activity{act("2024-08-20", "Run", 7499)})
	assert.Equal(t, 0.0, score.Breakdown[0].Extreme)
}

func TestScore_DistanceRuleRequiresBothClasses(t *testing.T) {
	engine := testEngine(t)

	both := []models.Activity{
		act("2024-08-16", "Run", 20000),
		act("2024-08-17", "Ride", 80000),
	}
	score := engine.Score(both)
	assert.Equal(t, 1000.0, score.Breakdown[0].Distance)

	walkRunOnly := []models.Activity{act("2024-08-16", "Run", 20000)}
	score = engine.Score(walkRunOnly)
	assert.Equal(t, 0.0, score.Breakdown[0].Distance)

	justShort := []models.Activity{
		act("2024-08-16", "Run", 19999),
		act("2024-08-17", "Ride", 80000),
	}
	score = engine.Score(justShort)
	assert.Equal(t, 0.0, score.Breakdown[0].Distance)
}

func TestScore_DistanceRuleSumsAcrossStage(t *testing.T) {
	engine := testEngine(t)

	acts := []models.Activity{
		act("2024-08-16", "Run", 8000),
		act("2024-08-20", "Walk", 7000),
		act("2024-08-25", "Run", 5000),
		act("2024-08-17", "Ride", 40000),
		act("2024-08-28", "Ride", 40000),
	}
	score := engine.Score(acts)
	assert.Equal(t, 1000.0, score.Breakdown[0].Distance)
}

func TestScore_StageTwoOverrides(t *testing.T) {
	engine := testEngine(t)

	// 7900m clears stage 1's 7500m extreme threshold but not stage 2's 8000m.
	score := engine.Score([]models.Activity{act("2024-09-05", "Run", 7900)})
	assert.Equal(t, 0.0, score.Breakdown[1].Extreme)

	score = engine.Score([]models.Activity{act("2024-09-05", "Run", 8000)})
	assert.Equal(t, 420.0, score.Breakdown[1].Extreme)
}

func TestScore_StageFiveExtremeOverride(t *testing.T) {
	engine := testEngine(t)

	score := engine.Score([]models.Activity{act("2024-11-10", "Run", 20000)})
	assert.Equal(t, 600.0, score.Breakdown[4].Extreme)

	score = engine.Score([]models.Activity{act("2024-11-10", "Run", 19000)})
	assert.Equal(t, 0.0, score.Breakdown[4].Extreme)
}

func TestScore_IgnoresOutOfWindowAndIrrelevantTypes(t *testing.T) {
	engine := testEngine(t)

	acts := []models.Activity{
		act("2024-08-14", "Run", 9000),  // day before the challenge
		act("2024-11-23", "Run", 9000),  // day after the challenge
		act("2024-08-20", "Swim", 9000), // not a challenge type
	}
	score := engine.Score(acts)
	assert.Equal(t, 0.0, score.TotalPoints)
}

func TestScore_Deterministic(t *testing.T) {
	engine := testEngine(t)

	var acts []models.Activity
	for i := 0; i < 15; i++ {
		acts = append(acts, act(fmt.Sprintf("2024-08-%02d", 15+i), "Run", 5500))
	}
	acts = append(acts, act("2024-09-05", "Ride", 35000))

	first := engine.Score(acts)
	second := engine.Score(acts)
	assert.Equal(t, first, second)
}

func TestScore_BreakdownCoversAllStages(t *testing.T) {
	engine := testEngine(t)

	score := engine.Score(nil)
	require.Len(t, score.Breakdown, 5)
	for i, ss := range score.Breakdown {
		assert.Equal(t, i+1, ss.Stage)
		assert.Equal(t, 0.0, ss.Total)
	}
	assert.Equal(t, 0.0, score.TotalPoints)
}
