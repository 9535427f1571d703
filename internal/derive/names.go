package derive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// NameStore is the part of the store the name backfill reads and writes
type NameStore interface {
	UnresolvedPlays(ctx context.Context) ([]*models.Play, error)
	PlayersByName(ctx context.Context) (map[string]string, error)
	ResolvePlayNames(ctx context.Context, updates []models.PlayNameUpdate) (int, error)
}

// BackfillResult summarizes one name backfill pass
type BackfillResult struct {
	Scanned     int
	Updated     int
	Matched     int
	Synthesized int
	// Kept counts plays that already carried a player id and only gained a name.
	Kept int
}

var jerseyPrefix = regexp.MustCompile(`^#?\d+\s+`)

// ExtractName returns the actor name of descriptions shaped like
// "5 Yuri Covington > Jumper Made". Text without the separator yields "".
func ExtractName(description string) string {
	head, _, found := strings.Cut(description, ">")
	if !found {
		return ""
	}
	head = jerseyPrefix.ReplaceAllString(strings.TrimSpace(head), "")
	return strings.TrimSpace(head)
}

// SyntheticPlayerID is the id given to a parsed name with no rostered player.
func SyntheticPlayerID(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])[:12]
}

// BackfillNames attributes unresolved plays to the player named at the start
// of their description. Names matching a rostered player (case-insensitive)
// take that player's id. A play that already has a player id keeps it.
func BackfillNames(ctx context.Context, store NameStore) (*BackfillResult, error) {
	plays, err := store.UnresolvedPlays(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading unresolved plays: %w", err)
	}

	roster, err := store.PlayersByName(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading player names: %w", err)
	}

	result := &BackfillResult{Scanned: len(plays)}
	updates := make([]models.PlayNameUpdate, 0, len(plays))
	for _, p := range plays {
		name := ExtractName(p.Description)
		if name == "" {
			continue
		}

		id, ok := roster[strings.ToLower(name)]
		switch {
		case p.PlayerID.Valid && p.PlayerID.String != "":
			id = p.PlayerID.String
			result.Kept++
		case ok:
			result.Matched++
		default:
			id = SyntheticPlayerID(name)
			result.Synthesized++
		}
		updates = append(updates, models.PlayNameUpdate{PlayID: p.PlayID, PlayerID: id, PlayerName: name})
	}

	n, err := store.ResolvePlayNames(ctx, updates)
	if err != nil {
		return nil, fmt.Errorf("writing backfilled names: %w", err)
	}
	result.Updated = n

	log.Info().
		Int("scanned", result.Scanned).
		Int("updated", result.Updated).
		Int("matched", result.Matched).
		Int("synthesized", result.Synthesized).
		Int("kept", result.Kept).
		Msg("Player names backfilled")

	return result, nil
}
