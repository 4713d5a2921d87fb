package staff

// Capabilities is the set of permissions held by a staff member.
type Capabilities uint8

const (
	CanApproveAsHOD Capabilities = 1 << iota
	CanApproveAsCoordinator
	CanApproveAsPrincipal
	IsTeacher
)

// Reviewer is any of the approval capabilities.
const Reviewer = CanApproveAsHOD | CanApproveAsCoordinator | CanApproveAsPrincipal

// Scope is the visibility of reports and listings.
type Scope int

const (
	ScopeSelf Scope = iota
	ScopeDepartment
	ScopeOrganization
)

func (s Scope) String() string {
	switch s {
	case ScopeDepartment:
		return "department"
	case ScopeOrganization:
		return "organization"
	default:
		return "self"
	}
}

// CapabilitiesOf resolves the capabilities of a staff profile.
// Every permission check in the application goes through it.
func CapabilitiesOf(s *Staff) Capabilities {
	if s == nil || !s.IsActive {
		return 0
	}
	caps := IsTeacher
	if s.IsHOD {
		caps |= CanApproveAsHOD
	}
	if s.IsCoordinator {
		caps |= CanApproveAsCoordinator
	}
	if s.IsPrincipal {
		caps |= CanApproveAsPrincipal
	}
	return caps
}

func (c Capabilities) Has(other Capabilities) bool {
	return other != 0 && c&other == other
}

func (c Capabilities) HasAny(other Capabilities) bool {
	return c&other != 0
}

// Scope returns the widest scope granted, HOD taking precedence.
func (c Capabilities) Scope() Scope {
	switch {
	case c.Has(CanApproveAsHOD):
		return ScopeDepartment
	case c.HasAny(CanApproveAsCoordinator | CanApproveAsPrincipal):
		return ScopeOrganization
	default:
		return ScopeSelf
	}
}

func (c Capabilities) Names() []string {
	names := make([]string, 0, 4)
	if c.Has(CanApproveAsHOD) {
		names = append(names, "hod")
	}
	if c.Has(CanApproveAsCoordinator) {
		names = append(names, "coordinator")
	}
	if c.Has(CanApproveAsPrincipal) {
		names = append(names, "principal")
	}
	if c.Has(IsTeacher) {
		names = append(names, "teacher")
	}
	return names
}

// CanView reports whether viewer may see the records of owner.
func CanView(viewer *Staff, owner Staff) bool {
	caps := CapabilitiesOf(viewer)
	if caps == 0 {
		return false
	}
	if viewer.ID == owner.ID {
		return true
	}
	switch caps.Scope() {
	case ScopeOrganization:
		return true
	case ScopeDepartment:
		return viewer.DepartmentID == owner.DepartmentID || caps.HasAny(CanApproveAsCoordinator|CanApproveAsPrincipal)
	}
	return false
}
