package domain

import "time"

// Team groups users that work tickets together.
type Team struct {
	ID          string
	Name        string
	Description string
	Active      bool
	LeaderID    *string
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Recipients returns member ids plus the leader, without duplicates.
func (t *Team) Recipients() []string {
	seen := make(map[string]struct{}, len(t.MemberIDs)+1)
	out := make([]string, 0, len(t.MemberIDs)+1)
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range t.MemberIDs {
		add(id)
	}
	if t.LeaderID != nil {
		add(*t.LeaderID)
	}
	return out
}
