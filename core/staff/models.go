package staff

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

type (
	Role struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Department struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// Staff is the professional profile attached to a user account.
	// Profiles are never deleted, only deactivated.
	Staff struct {
		ID             int64      `json:"id"`
		UserID         int64      `json:"user_id"`
		FirstName      string     `json:"first_name"`
		MiddleName     string     `json:"middle_name"`
		LastName       string     `json:"last_name"`
		StaffNo        string     `json:"staff_no"`
		RoleID         null.Int64 `json:"role_id"`
		DepartmentID   int64      `json:"department_id"`
		IsActive       bool       `json:"is_active"`
		IsHOD          bool       `json:"is_hod"`
		IsCoordinator  bool       `json:"is_coordinator"`
		IsPrincipal    bool       `json:"is_principal"`
		CreatedAt      time.Time  `json:"created_at"` // UTC
		RoleName       string     `json:"role_name,omitempty"`
		DepartmentName string     `json:"department_name,omitempty"`
	}
)

func (s Staff) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.FirstName, s.MiddleName, s.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type NewRole struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (nr *NewRole) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	return validate.Struct(nr)
}

type NewDepartment struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	return validate.Struct(nd)
}

// NewStaff contains information needed to onboard a staff member.
type NewStaff struct {
	UserID        int64  `json:"user_id" validate:"required"`
	FirstName     string `json:"first_name" validate:"required,max=100"`
	MiddleName    string `json:"middle_name" validate:"max=100"`
	LastName      string `json:"last_name" validate:"required,max=100"`
	StaffNo       string `json:"staff_no" validate:"required,alphanum_,max=20"`
	RoleID        int64  `json:"role_id"`
	DepartmentID  int64  `json:"department_id" validate:"required"`
	IsHOD         bool   `json:"is_hod"`
	IsCoordinator bool   `json:"is_coordinator"`
	IsPrincipal   bool   `json:"is_principal"`
}

func (ns *NewStaff) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.MiddleName = core.CleanString(ns.MiddleName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.StaffNo = core.CleanString(ns.StaffNo)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkNewStaff(ctx, ns)
}

// UpdateStaff carries the editable fields of a staff profile. Nil fields are left unchanged.
type UpdateStaff struct {
	RoleID        *int64 `json:"role_id"`
	DepartmentID  *int64 `json:"department_id"`
	IsActive      *bool  `json:"is_active"`
	IsHOD         *bool  `json:"is_hod"`
	IsCoordinator *bool  `json:"is_coordinator"`
	IsPrincipal   *bool  `json:"is_principal"`
}

type QueryFilter struct {
	DepartmentID int64  `query:"department_id"`
	RoleID       int64  `query:"role_id"`
	IsActive     *bool  `query:"is_active"`
	Search       string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
