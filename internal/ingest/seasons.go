package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"portalrecruit/ingestion/internal/envelope"
)

var (
	seasonYearKeys  = []string{"year", "seasonYear", "startYear", "endYear"}
	seasonTextKeys  = []string{"name", "id", "seasonId"}
	seasonIDKeys    = []string{"id", "seasonId", "seasonID"}
	fourDigitPeriod = regexp.MustCompile(`\d{4}`)
)

// seasonID returns the first non-empty identity field of a season record.
func seasonID(rec envelope.Record) string {
	for _, key := range seasonIDKeys {
		if s := scalarString(rec[key]); s != "" {
			return s
		}
	}
	return ""
}

// seasonScore infers a season's year: explicit numeric fields first, then the
// last four-digit run in its name or id. Unknown seasons score zero.
func seasonScore(rec envelope.Record) int {
	for _, key := range seasonYearKeys {
		switch v := rec[key].(type) {
		case float64:
			if v == float64(int(v)) {
				return int(v)
			}
		case string:
			if isDigits(v) {
				if n, err := strconv.Atoi(v); err == nil {
					return n
				}
			}
		}
	}

	for _, key := range seasonTextKeys {
		s, ok := rec[key].(string)
		if !ok {
			continue
		}
		if runs := fourDigitPeriod.FindAllString(s, -1); len(runs) > 0 {
			n, _ := strconv.Atoi(runs[len(runs)-1])
			return n
		}
	}
	return 0
}

// pickLatestSeason returns the id of the season with the highest inferred
// year. Ties keep upstream order; seasons without an id are passed over.
func pickLatestSeason(seasons []envelope.Record) string {
	sorted := make([]envelope.Record, len(seasons))
	copy(sorted, seasons)
	sort.SliceStable(sorted, func(i, j int) bool {
		return seasonScore(sorted[i]) > seasonScore(sorted[j])
	})

	for _, s := range sorted {
		if id := seasonID(s); id != "" {
			return id
		}
	}
	return ""
}

// targetSeasons resolves the seasons a run ingests.
func targetSeasons(req Request, seasons []envelope.Record) []string {
	if req.SeasonID != "" {
		return []string{req.SeasonID}
	}

	if req.AllSeasons {
		var ids []string
		seen := make(map[string]struct{})
		for _, s := range seasons {
			id := seasonID(s)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return ids
	}

	if latest := pickLatestSeason(seasons); latest != "" {
		return []string{latest}
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
