package derive

import (
	"context"
	"database/sql"
	"testing"

	"portalrecruit/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractName(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{desc: "5 Yuri Covington > Jumper Made", want: "Yuri Covington"},
		{desc: "#23 Ace Baldwin Jr. > Turnover", want: "Ace Baldwin Jr."},
		{desc: "Marcus Hill > Offensive Rebound", want: "Marcus Hill"},
		{desc: "Jumper Made", want: ""},
		{desc: " > Foul", want: ""},
		{desc: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractName(tt.desc))
		})
	}
}

func TestSyntheticPlayerID(t *testing.T) {
	id := SyntheticPlayerID("Yuri Covington")
	assert.Len(t, id, 12)
	assert.Equal(t, id, SyntheticPlayerID("Yuri Covington"))
	assert.NotEqual(t, id, SyntheticPlayerID("Marcus Hill"))
}

func TestBackfillNames(t *testing.T) {
	resolved := play("0", "P9", "9 Someone Else > Jumper Made")
	store := &memoryStore{
		players: map[string]string{"marcus hill": "P2"},
		plays: []*models.Play{
			resolved,
			{PlayID: "1", Description: "12 MARCUS HILL > Layup Made"},
			{PlayID: "2", Description: "5 Yuri Covington > Jumper Missed"},
			{PlayID: "3", Description: "Timeout"},
			{PlayID: "4", Description: "3 Ghost > Foul", PlayerName: sql.NullString{Valid: true}},
			{PlayID: "5", PlayerID: sql.NullString{String: "P7", Valid: true}, Description: "5 Yuri Covington > Jumper Made"},
		},
	}

	result, err := BackfillNames(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, &BackfillResult{Scanned: 5, Updated: 4, Matched: 1, Synthesized: 2, Kept: 1}, result)
	assert.Equal(t, []models.PlayNameUpdate{
		{PlayID: "1", PlayerID: "P2", PlayerName: "MARCUS HILL"},
		{PlayID: "2", PlayerID: SyntheticPlayerID("Yuri Covington"), PlayerName: "Yuri Covington"},
		{PlayID: "4", PlayerID: SyntheticPlayerID("Ghost"), PlayerName: "Ghost"},
		{PlayID: "5", PlayerID: "P7", PlayerName: "Yuri Covington"},
	}, store.updates)
}
