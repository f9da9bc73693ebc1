package challenge

import (
	"errors"
	"fmt"
	"time"
)

// A 100-day challenge split into five 20-day stages. Every stage carries the
// four sub-challenge rules; thresholds differ per stage via the override
// table below.

type RuleKind string

const (
	RuleDaily    RuleKind = "daily"
	RuleAdvanced RuleKind = "advanced"
	RuleExtreme  RuleKind = "extreme"
	RuleDistance RuleKind = "distance"
)

// Rule is static configuration for one sub-challenge within a stage.
// Nil distance thresholds mean "not configured": a daily rule then accepts
// any distance, an extreme rule can never be satisfied by that class, and a
// distance rule does not require that class.
type Rule struct {
	Kind             RuleKind
	ActivityTypes    []string
	MinDays          int
	MaxDays          int // documentary only, never enforced as a cap
	MinWalkRunMeters *float64
	MinRideMeters    *float64
	Points           float64
	Description      string
}

type Stage struct {
	Number    int
	Name      string
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	Rules     []Rule
}

type Timeline struct {
	Name          string
	StartDate     string
	TotalDays     int
	ActivityTypes []string
	Stages        []Stage
}

var ErrBadTimeline = errors.New("invalid challenge timeline")

const (
	dateLayout    = "2006-01-02"
	stageDays     = 20
	stageCount    = 5
	totalDays     = stageDays * stageCount
	challengeName = "100 Day Challenge"
)

func f64(v float64) *float64 { return &v }

func defaultRules() []Rule {
	return []Rule{
		{
			Kind:             RuleDaily,
			ActivityTypes:    []string{"Walk", "Run", "Ride"},
			MinDays:          12,
			MaxDays:          16,
			MinWalkRunMeters: f64(5000),
			MinRideMeters:    f64(20000),
			Points:           100,
			Description:      "Min 12 / Max 16 days activity (>5km Walk/Run OR >20km Ride)",
		},
		{
			Kind:             RuleAdvanced,
			ActivityTypes:    []string{"Walk", "Run", "Ride"},
			MinDays:          6,
			MaxDays:          8,
			MinWalkRunMeters: f64(6000),
			MinRideMeters:    f64(24000),
			Points:           200,
			Description:      "Min 6 / Max 8 days advanced activity (>6km Walk/Run OR >24km Ride)",
		},
		{
			Kind:             RuleExtreme,
			ActivityTypes:    []string{"Walk", "Run", "Ride"},
			MinDays:          1,
			MaxDays:          1,
			MinWalkRunMeters: f64(7500),
			MinRideMeters:    f64(30000),
			Points:           500,
			Description:      "1 day extreme activity (>7.5km Walk/Run OR >30km Ride)",
		},
		{
			Kind:             RuleDistance,
			ActivityTypes:    []string{"Walk", "Run", "Ride"},
			MinWalkRunMeters: f64(20000),
			MinRideMeters:    f64(80000),
			Points:           1000,
			Description:      "Minimum total distance challenge",
		},
	}
}

// stageOverride replaces selected fields of the default rule of the same
// kind. Nil fields keep the default. Stages 3 and 4 have no rows: their
// thresholds were never finalized, so the defaults apply.
type stageOverride struct {
	kind    RuleKind
	points  *float64
	walkRun *float64
	ride    *float64
}

var stageOverrides = map[int][]stageOverride{
	2: {
		{kind: RuleDaily, points: f64(110), walkRun: f64(6000), ride: f64(24000)},
		{kind: RuleAdvanced, points: f64(220), walkRun: f64(6500), ride: f64(26000)},
		{kind: RuleExtreme, points: f64(420), walkRun: f64(8000), ride: f64(32000)},
		{kind: RuleDistance, points: f64(1200), walkRun: f64(25000), ride: f64(100000)},
	},
	5: {
		{kind: RuleExtreme, points: f64(600), walkRun: f64(20000), ride: f64(80000)},
	},
}

// NewTimeline builds the full stage table from a YYYY-MM-DD start date.
func NewTimeline(startDate string) (Timeline, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return Timeline{}, fmt.Errorf("%w: bad start date %q", ErrBadTimeline, startDate)
	}

	tl := Timeline{
		Name:          challengeName,
		StartDate:     startDate,
		TotalDays:     totalDays,
		ActivityTypes: []string{"Walk", "Run", "Ride"},
	}

	stageStart := start
	for i := 1; i <= stageCount; i++ {
		stageEnd := stageStart.AddDate(0, 0, stageDays-1)
		rules := defaultRules()
		for _, ov := range stageOverrides[i] {
			for r := range rules {
				if rules[r].Kind != ov.kind {
					continue
				}
				if ov.points != nil {
					rules[r].Points = *ov.points
				}
				if ov.walkRun != nil {
					rules[r].MinWalkRunMeters = ov.walkRun
				}
				if ov.ride != nil {
					rules[r].MinRideMeters = ov.ride
				}
			}
		}
		tl.Stages = append(tl.Stages, Stage{
			Number:    i,
			Name:      fmt.Sprintf("Stage %d", i),
			StartDate: stageStart.Format(dateLayout),
			EndDate:   stageEnd.Format(dateLayout),
			Rules:     rules,
		})
		stageStart = stageEnd.AddDate(0, 0, 1)
	}

	return tl, nil
}

// EndDate is the last day of the challenge, inclusive.
func (tl Timeline) EndDate() string {
	start, _ := time.Parse(dateLayout, tl.StartDate)
	return start.AddDate(0, 0, tl.TotalDays-1).Format(dateLayout)
}

// Window is the challenge span as UTC instants covering the first and last
// day in full, for store queries on the UTC start date.
func (tl Timeline) Window() (time.Time, time.Time) {
	start, _ := time.Parse(dateLayout, tl.StartDate)
	end, _ := time.Parse(dateLayout, tl.EndDate())
	return start, end.Add(24*time.Hour - time.Second)
}

// validate checks the stage partition: ordered, contiguous, non-overlapping
// and covering the whole duration. Violations are fatal at engine
// construction.
func (tl Timeline) validate() error {
	if len(tl.Stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrBadTimeline)
	}
	if len(tl.ActivityTypes) == 0 {
		return fmt.Errorf("%w: no activity types", ErrBadTimeline)
	}
	prevEnd := ""
	covered := 0
	for i, st := range tl.Stages {
		start, err := time.Parse(dateLayout, st.StartDate)
		if err != nil {
			return fmt.Errorf("%w: stage %d bad start date", ErrBadTimeline, st.Number)
		}
		end, err := time.Parse(dateLayout, st.EndDate)
		if err != nil {
			return fmt.Errorf("%w: stage %d bad end date", ErrBadTimeline, st.Number)
		}
		if end.Before(start) {
			return fmt.Errorf("%w: stage %d ends before it starts", ErrBadTimeline, st.Number)
		}
		if i == 0 {
			if st.StartDate != tl.StartDate {
				return fmt.Errorf("%w: first stage does not start the challenge", ErrBadTimeline)
			}
		} else {
			prev, _ := time.Parse(dateLayout, prevEnd)
			if !start.Equal(prev.AddDate(0, 0, 1)) {
				return fmt.Errorf("%w: gap or overlap before stage %d", ErrBadTimeline, st.Number)
			}
		}
		covered += int(end.Sub(start).Hours()/24) + 1
		prevEnd = st.EndDate
	}
	if covered != tl.TotalDays {
		return fmt.Errorf("%w: stages cover %d days, want %d", ErrBadTimeline, covered, tl.TotalDays)
	}
	return nil
}
