package domain

// Actor is the resolved identity of the caller of an engine operation.
//
// TeamIDs holds explicit memberships merged with teams the user leads.
type Actor struct {
	ID      string
	Email   string
	Name    string
	Role    Role
	TeamIDs []string
}

// IsAdmin reports whether the actor carries the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// InTeam reports whether teamID is part of the actor's effective team set.
func (a *Actor) InTeam(teamID *string) bool {
	if a == nil || teamID == nil {
		return false
	}
	for _, id := range a.TeamIDs {
		if id == *teamID {
			return true
		}
	}
	return false
}
