package domain

// Identity is the authenticated operator's profile held alongside a valid credential.
type Identity struct {
	SubjectID   string
	Role        Role
	DisplayName string
	Email       string
}

// Clone returns a detached copy.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}
