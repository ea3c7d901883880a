package domain

// Principal is the acting identity handed to the core by the authentication
// collaborator. The zero value is an anonymous caller.
type Principal struct {
	ID                 string
	IsAdmin            bool
	IsVerifiedObserver bool
}

func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

// CanVerify reports whether the principal may change a report's trust status.
func (p Principal) CanVerify() bool {
	if p.IsAnonymous() {
		return false
	}
	return p.IsAdmin || p.IsVerifiedObserver
}

// CanRespond reports whether the principal may mark an incident as handled.
func (p Principal) CanRespond() bool {
	return !p.IsAnonymous() && p.IsAdmin
}
