package enums

// AuthorRole distinguishes the grant levels on a contract.
type AuthorRole string

const (
	AuthorRolePrimary  AuthorRole = "primary"
	AuthorRoleCoAuthor AuthorRole = "co-author"
)

// String implements fmt.Stringer.
func (a AuthorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuthorRole) IsValid() bool {
	return a == AuthorRolePrimary || a == AuthorRoleCoAuthor
}
