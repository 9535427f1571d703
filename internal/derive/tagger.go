package derive

import (
	"sort"
	"strings"

	"portalrecruit/ingestion/internal/models"
)

// Tag vocabulary
const (
	TagPickAndRoll      = "pnr"
	TagIsolation        = "iso"
	TagHandoff          = "handoff"
	TagPostUp           = "post_up"
	TagDrive            = "drive"
	TagCut              = "cut"
	TagThree            = "3pt"
	TagJumpshot         = "jumpshot"
	TagDunk             = "dunk"
	TagLayup            = "layup"
	TagRimFinish        = "rim_finish"
	TagMade             = "made"
	TagScore            = "score"
	TagMissed           = "missed"
	TagTurnover         = "turnover"
	TagLiveBallTurnover = "live_ball_turnover"
	TagRebound          = "rebound"
	TagOffRebound       = "oreb"
	TagDefRebound       = "dreb"
	TagFoul             = "foul"
	TagTransition       = "transition"
	TagLateClock        = "late_clock"
	TagBuzzerBeater     = "buzzer_beater_scenario"
	TagAssist           = "assist"
	TagBlock            = "block"
	TagSteal            = "steal"
)

const (
	lateClockSeconds    = 5
	buzzerBeaterSeconds = 2
)

// Tag maps a play description and optional game clock ("mm:ss" or seconds
// remaining) to a sorted, de-duplicated list of tags. Matching is
// case-insensitive substring matching.
func Tag(description, clock string) []string {
	secs, ok := models.ParseClock(clock)
	return tag(description, secs, ok)
}

// TagPlay tags a play, preferring its parsed clock seconds.
func TagPlay(p *models.Play) []string {
	if p.ClockSeconds.Valid {
		return tag(p.Description, int(p.ClockSeconds.Int32), true)
	}
	return Tag(p.Description, p.ClockDisplay.String)
}

func tag(description string, clockSeconds int, hasClock bool) []string {
	d := strings.ToLower(description)
	tags := make(map[string]struct{})
	add := func(t ...string) {
		for _, v := range t {
			tags[v] = struct{}{}
		}
	}

	// Offensive actions
	if containsAny(d, "screen", "pick") {
		add(TagPickAndRoll)
	}
	if containsAny(d, "isolation", "iso") {
		add(TagIsolation)
	}
	if containsAny(d, "handoff", "dho") {
		add(TagHandoff)
	}
	if strings.Contains(d, "post") {
		add(TagPostUp)
	}
	if strings.Contains(d, "drive") {
		add(TagDrive)
	}
	if strings.Contains(d, "cut") {
		add(TagCut)
	}

	// Shot type, first match wins
	switch {
	case containsAny(d, "3pt", "3-pt", "three"):
		add(TagThree, TagJumpshot)
	case strings.Contains(d, "dunk"):
		add(TagDunk, TagRimFinish)
	case strings.Contains(d, "layup"):
		add(TagLayup, TagRimFinish)
	case containsAny(d, "jumper", "jump shot"):
		add(TagJumpshot)
	}

	// Outcomes
	if strings.Contains(d, "made") {
		add(TagMade, TagScore)
	} else if strings.Contains(d, "missed") {
		add(TagMissed)
	}
	if strings.Contains(d, "turnover") {
		add(TagTurnover)
		if strings.Contains(d, "steal") {
			add(TagLiveBallTurnover)
		}
	}
	if strings.Contains(d, "rebound") {
		add(TagRebound)
		if strings.Contains(d, "offensive") {
			add(TagOffRebound)
		} else {
			add(TagDefRebound)
		}
	}
	if strings.Contains(d, "foul") {
		add(TagFoul)
	}
	if strings.Contains(d, "assist") {
		add(TagAssist)
	}
	if strings.Contains(d, "block") {
		add(TagBlock)
	}
	if strings.Contains(d, "steal") {
		add(TagSteal)
	}

	// Context
	if containsAny(d, "fast break", "transition") {
		add(TagTransition)
	}

	// Clock is seconds remaining in the period
	if hasClock && clockSeconds > 0 {
		if clockSeconds <= lateClockSeconds {
			add(TagLateClock)
		}
		if clockSeconds <= buzzerBeaterSeconds {
			add(TagBuzzerBeater)
		}
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
