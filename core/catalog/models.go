package catalog

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

type (
	// Domain is a competency area scoped to a role.
	Domain struct {
		ID         int64       `json:"id"`
		Name       string      `json:"name"`
		RoleID     null.Int64  `json:"role_id"`
		Components []Component `json:"components,omitempty"`
	}

	// Component is a sub-skill of a Domain.
	Component struct {
		ID       int64  `json:"id"`
		DomainID int64  `json:"domain_id"`
		Name     string `json:"name"`
	}

	AcademicYear struct {
		ID        int64 `json:"id"`
		StartYear int   `json:"start_year"`
		EndYear   int   `json:"end_year"`
		IsCurrent bool  `json:"is_current"`
	}
)

func (ay AcademicYear) String() string {
	if ay.IsCurrent {
		return fmt.Sprintf("%d/%d (Current)", ay.StartYear, ay.EndYear)
	}
	return fmt.Sprintf("%d/%d", ay.StartYear, ay.EndYear)
}

// ComponentIDs returns the IDs of the domain's components.
func (d Domain) ComponentIDs() []int64 {
	ids := make([]int64, 0, len(d.Components))
	for _, c := range d.Components {
		ids = append(ids, c.ID)
	}
	return ids
}

// HasComponent reports whether id is one of the domain's components.
func (d Domain) HasComponent(id int64) bool {
	for _, c := range d.Components {
		if c.ID == id {
			return true
		}
	}
	return false
}

type NewDomain struct {
	Name   string `json:"name" validate:"required,max=200"`
	RoleID int64  `json:"role_id"`
}

func (nd *NewDomain) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	return validate.Struct(nd)
}

type NewComponent struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (nc *NewComponent) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type NewAcademicYear struct {
	StartYear int `json:"start_year" validate:"required,min=1900"`
	EndYear   int `json:"end_year" validate:"required,gtfield=StartYear"`
}

func (ny *NewAcademicYear) Validate(validate *validator.Validate) error {
	return validate.Struct(ny)
}

type DomainFilter struct {
	RoleID       int64 `query:"role_id"`
	NoRole       bool  `query:"no_role"`
	WithChildren bool  `query:"-"`
}
