package domain

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleStaff   Role = "staff"
)

// Principal is an authenticated actor resolved at the transport boundary.
type Principal struct {
	ID   string
	Name string
	Role Role
}

func StaffPrincipal(id, name string) Principal {
	return Principal{ID: id, Name: name, Role: RoleStaff}
}

func VisitorPrincipal(v *Visitor) Principal {
	return Principal{ID: v.ID.String(), Name: v.DisplayName(), Role: RoleVisitor}
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff
}

func (p Principal) IsZero() bool {
	return p.ID == ""
}
