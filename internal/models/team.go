package models

// Team is a team as listed for a season. Teams are not persisted; they only
// drive the per-team fan-out of the games, roster and stats endpoints.
type Team struct {
	TeamID string
	Name   string
}

// TeamInput is a team record as returned by the teams endpoint
type TeamInput struct {
	ID       FlexString `json:"id"`
	Name     FlexString `json:"name"`
	FullName FlexString `json:"fullName"`
	Abbr     FlexString `json:"abbr"`
}

// ToTeam converts TeamInput (from API) to Team model
func (ti *TeamInput) ToTeam() (*Team, error) {
	if ti.ID == "" {
		return nil, ErrMissingID
	}
	return &Team{
		TeamID: ti.ID.String(),
		Name:   firstNonEmpty(ti.FullName, ti.Name, ti.Abbr),
	}, nil
}
