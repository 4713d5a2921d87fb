package catalog

import (
	"context"
	"errors"

	"github.com/kat-co/vala"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

var (
	// errors
	ErrDomainNotFound       = core.NewNotFoundError("domain")
	ErrComponentNotFound    = core.NewNotFoundError("component")
	ErrAcademicYearNotFound = core.NewNotFoundError("academic year")
	ErrNoCurrentYear        = core.NewNotFoundError("current academic year")
	ErrAcademicYearExists   = errors.New("this academic year already exists")
)

type (
	Repository interface {
		CreateDomain(ctx context.Context, d Domain) (Domain, error)
		GetDomain(ctx context.Context, id int64) (Domain, error)
		// QueryDomains returns domains ordered by ID, each with its components ordered by ID.
		QueryDomains(ctx context.Context, filter DomainFilter) ([]Domain, error)
		DeleteDomain(ctx context.Context, id int64) error
		CreateComponent(ctx context.Context, c Component) (Component, error)
		GetComponents(ctx context.Context, ids ...int64) ([]Component, error)

		CreateAcademicYear(ctx context.Context, ay AcademicYear) (AcademicYear, error)
		GetAcademicYear(ctx context.Context, id int64) (AcademicYear, error)
		GetAcademicYearByRange(ctx context.Context, start, end int) (AcademicYear, error)
		QueryAcademicYears(ctx context.Context) ([]AcademicYear, error)
		// SetCurrentAcademicYear replaces the single current-year pointer.
		SetCurrentAcademicYear(ctx context.Context, id int64) error
		GetCurrentAcademicYear(ctx context.Context) (AcademicYear, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo}
}

func (svc *Service) CreateDomain(ctx context.Context, nd NewDomain) (Domain, error) {
	return svc.repo.CreateDomain(ctx, Domain{Name: nd.Name, RoleID: null.NewInt64(nd.RoleID, nd.RoleID != 0)})
}

func (svc *Service) GetDomain(ctx context.Context, id int64) (Domain, error) {
	return svc.repo.GetDomain(ctx, id)
}

func (svc *Service) QueryDomains(ctx context.Context, filter DomainFilter) ([]Domain, error) {
	return svc.repo.QueryDomains(ctx, filter)
}

// DomainsForRole returns the domains scoped to roleID with their components, in ID order.
// An invalid roleID matches no domain.
func (svc *Service) DomainsForRole(ctx context.Context, roleID null.Int64) ([]Domain, error) {
	if !roleID.Valid {
		return []Domain{}, nil
	}
	return svc.repo.QueryDomains(ctx, DomainFilter{RoleID: roleID.Int64, WithChildren: true})
}

// DeleteDomain removes a domain and its components.
func (svc *Service) DeleteDomain(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetDomain(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteDomain(ctx, id)
}

func (svc *Service) AddComponent(ctx context.Context, domainID int64, nc NewComponent) (Component, error) {
	if _, err := svc.repo.GetDomain(ctx, domainID); err != nil {
		return Component{}, err
	}
	return svc.repo.CreateComponent(ctx, Component{DomainID: domainID, Name: nc.Name})
}

// ComponentNames maps each of ids to its component name.
func (svc *Service) ComponentNames(ctx context.Context, ids ...int64) (map[int64]string, error) {
	comps, err := svc.repo.GetComponents(ctx, ids...)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(comps))
	for _, c := range comps {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (svc *Service) GetComponents(ctx context.Context, ids ...int64) ([]Component, error) {
	return svc.repo.GetComponents(ctx, ids...)
}

func (svc *Service) CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	if _, err := svc.repo.GetAcademicYearByRange(ctx, ny.StartYear, ny.EndYear); err == nil {
		return AcademicYear{}, core.NewValidationError(ErrAcademicYearExists,
			core.FieldError{Field: "start_year", Error: ErrAcademicYearExists.Error()})
	} else if !core.IsNotFound(err) {
		return AcademicYear{}, err
	}
	return svc.repo.CreateAcademicYear(ctx, AcademicYear{StartYear: ny.StartYear, EndYear: ny.EndYear})
}

func (svc *Service) GetAcademicYear(ctx context.Context, id int64) (AcademicYear, error) {
	return svc.repo.GetAcademicYear(ctx, id)
}

func (svc *Service) QueryAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryAcademicYears(ctx)
}

// SetCurrentAcademicYear makes id the only current academic year.
func (svc *Service) SetCurrentAcademicYear(ctx context.Context, id int64) (AcademicYear, error) {
	ay, err := svc.repo.GetAcademicYear(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	if err = svc.repo.SetCurrentAcademicYear(ctx, id); err != nil {
		return AcademicYear{}, err
	}
	ay.IsCurrent = true
	return ay, nil
}

// CurrentAcademicYear returns the current academic year or ErrNoCurrentYear.
func (svc *Service) CurrentAcademicYear(ctx context.Context) (AcademicYear, error) {
	return svc.repo.GetCurrentAcademicYear(ctx)
}
