package staff

import (
	"context"
	"errors"

	"github.com/kat-co/vala"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("staff")
	ErrRoleNotFound       = core.NewNotFoundError("role")
	ErrDepartmentNotFound = core.NewNotFoundError("department")
	ErrNoProfile          = core.NewAuthorizationError("no staff profile")
	ErrStaffNoExists      = errors.New("a staff member with this number already exists")
	ErrProfileExists      = errors.New("this user already has a staff profile")
	ErrRoleExists         = errors.New("a role with this name already exists")
	ErrDepartmentExists   = errors.New("a department with this name already exists")
)

type (
	Repository interface {
		CreateRole(ctx context.Context, role Role) (Role, error)
		GetRole(ctx context.Context, id int64) (Role, error)
		GetRoleByName(ctx context.Context, name string) (Role, error)
		QueryRoles(ctx context.Context) ([]Role, error)

		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		GetDepartment(ctx context.Context, id int64) (Department, error)
		GetDepartmentByName(ctx context.Context, name string) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)

		CreateStaff(ctx context.Context, s Staff) (Staff, error)
		GetStaff(ctx context.Context, id int64) (Staff, error)
		GetStaffByUser(ctx context.Context, userID int64) (Staff, error)
		GetStaffByNo(ctx context.Context, staffNo string) (Staff, error)
		QueryStaff(ctx context.Context, filter *QueryFilter) ([]Staff, error)
		UpdateStaff(ctx context.Context, s Staff) (Staff, error)
	}

	Service struct {
		repo    Repository
		userSvc *user.Service
	}
)

func NewService(repo Repository, userSvc *user.Service) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(userSvc, "userSvc"),
	).CheckAndPanic()

	return &Service{repo: repo, userSvc: userSvc}
}

func (svc *Service) checkNewStaff(ctx context.Context, ns *NewStaff) error {
	var flds []core.FieldError

	if _, err := svc.userSvc.GetByID(ctx, ns.UserID); err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		flds = append(flds, core.FieldError{Field: "user_id", Error: err.Error()})
	} else if _, err = svc.repo.GetStaffByUser(ctx, ns.UserID); err == nil {
		flds = append(flds, core.FieldError{Field: "user_id", Error: ErrProfileExists.Error()})
	} else if !core.IsNotFound(err) {
		return err
	}

	if _, err := svc.repo.GetStaffByNo(ctx, ns.StaffNo); err == nil {
		flds = append(flds, core.FieldError{Field: "staff_no", Error: ErrStaffNoExists.Error()})
	} else if !core.IsNotFound(err) {
		return err
	}

	if ns.RoleID != 0 {
		if _, err := svc.repo.GetRole(ctx, ns.RoleID); err != nil {
			if !core.IsNotFound(err) {
				return err
			}
			flds = append(flds, core.FieldError{Field: "role_id", Error: err.Error()})
		}
	}
	if _, err := svc.repo.GetDepartment(ctx, ns.DepartmentID); err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		flds = append(flds, core.FieldError{Field: "department_id", Error: err.Error()})
	}

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *Service) CreateRole(ctx context.Context, nr NewRole) (Role, error) {
	if _, err := svc.repo.GetRoleByName(ctx, nr.Name); err == nil {
		return Role{}, core.NewValidationError(ErrRoleExists, core.FieldError{Field: "name", Error: ErrRoleExists.Error()})
	} else if !core.IsNotFound(err) {
		return Role{}, err
	}
	return svc.repo.CreateRole(ctx, Role{Name: nr.Name})
}

// EnsureRole returns the role named name, creating it when missing.
func (svc *Service) EnsureRole(ctx context.Context, name string) (Role, error) {
	name = core.CleanString(name)
	role, err := svc.repo.GetRoleByName(ctx, name)
	if err == nil || !core.IsNotFound(err) {
		return role, err
	}
	return svc.repo.CreateRole(ctx, Role{Name: name})
}

func (svc *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return svc.repo.GetRole(ctx, id)
}

func (svc *Service) QueryRoles(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *Service) CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error) {
	if _, err := svc.repo.GetDepartmentByName(ctx, nd.Name); err == nil {
		return Department{}, core.NewValidationError(ErrDepartmentExists, core.FieldError{Field: "name", Error: ErrDepartmentExists.Error()})
	} else if !core.IsNotFound(err) {
		return Department{}, err
	}
	return svc.repo.CreateDepartment(ctx, Department{Name: nd.Name})
}

func (svc *Service) QueryDepartments(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

// Onboard creates the staff profile of an existing user.
func (svc *Service) Onboard(ctx context.Context, ns NewStaff) (Staff, error) {
	s := Staff{
		UserID:        ns.UserID,
		FirstName:     ns.FirstName,
		MiddleName:    ns.MiddleName,
		LastName:      ns.LastName,
		StaffNo:       ns.StaffNo,
		RoleID:        null.NewInt64(ns.RoleID, ns.RoleID != 0),
		DepartmentID:  ns.DepartmentID,
		IsActive:      true,
		IsHOD:         ns.IsHOD,
		IsCoordinator: ns.IsCoordinator,
		IsPrincipal:   ns.IsPrincipal,
		CreatedAt:     core.Now(),
	}
	return svc.repo.CreateStaff(ctx, s)
}

func (svc *Service) Update(ctx context.Context, id int64, us UpdateStaff) (Staff, error) {
	s, err := svc.repo.GetStaff(ctx, id)
	if err != nil {
		return Staff{}, err
	}

	if us.RoleID != nil {
		if *us.RoleID == 0 {
			s.RoleID = null.Int64{}
		} else {
			if _, err = svc.repo.GetRole(ctx, *us.RoleID); err != nil {
				return Staff{}, fieldErr(err, "role_id")
			}
			s.RoleID = null.Int64From(*us.RoleID)
		}
	}
	if us.DepartmentID != nil {
		if _, err = svc.repo.GetDepartment(ctx, *us.DepartmentID); err != nil {
			return Staff{}, fieldErr(err, "department_id")
		}
		s.DepartmentID = *us.DepartmentID
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	if us.IsHOD != nil {
		s.IsHOD = *us.IsHOD
	}
	if us.IsCoordinator != nil {
		s.IsCoordinator = *us.IsCoordinator
	}
	if us.IsPrincipal != nil {
		s.IsPrincipal = *us.IsPrincipal
	}
	return svc.repo.UpdateStaff(ctx, s)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Staff, error) {
	return svc.repo.GetStaff(ctx, id)
}

// GetByUser returns the staff profile of a user, or ErrNotFound.
func (svc *Service) GetByUser(ctx context.Context, userID int64) (Staff, error) {
	return svc.repo.GetStaffByUser(ctx, userID)
}

// Members lists the staff visible to actor: the HOD's department, or everyone for coordinators and principals.
func (svc *Service) Members(ctx context.Context, actor *Staff, filter *QueryFilter) ([]Staff, error) {
	caps := CapabilitiesOf(actor)
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case caps == 0:
		return nil, ErrNoProfile
	case caps.HasAny(CanApproveAsCoordinator | CanApproveAsPrincipal):
	case caps.Has(CanApproveAsHOD):
		filter.DepartmentID = actor.DepartmentID
	default:
		return nil, core.NewAuthorizationError("you do not have permission to view staff members")
	}
	return svc.repo.QueryStaff(ctx, filter)
}

// InScope lists the active staff covered by scope for actor.
func (svc *Service) InScope(ctx context.Context, actor *Staff, scope Scope) ([]Staff, error) {
	active := true
	filter := &QueryFilter{IsActive: &active}
	switch scope {
	case ScopeDepartment:
		filter.DepartmentID = actor.DepartmentID
	case ScopeSelf:
		return []Staff{*actor}, nil
	}
	return svc.repo.QueryStaff(ctx, filter)
}

func fieldErr(err error, field string) error {
	if core.IsNotFound(err) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return err
}
