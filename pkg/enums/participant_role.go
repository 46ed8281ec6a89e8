package enums

// ParticipantRole distinguishes households attached to a contract.
type ParticipantRole string

const (
	ParticipantRolePrimary   ParticipantRole = "primary"
	ParticipantRoleDependent ParticipantRole = "dependent"
)

// String implements fmt.Stringer.
func (p ParticipantRole) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p ParticipantRole) IsValid() bool {
	return p == ParticipantRolePrimary || p == ParticipantRoleDependent
}
