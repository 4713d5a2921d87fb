package dashboard

import (
	"context"
	"math"
	"sort"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

const (
	recentLimit = 5
	topLimit    = 5
)

type (
	Repository interface {
		Stats(ctx context.Context, filter Filter) (Stats, error)
		// DomainCounts counts selections of kind per domain over the in-scope reflection domains.
		DomainCounts(ctx context.Context, filter Filter, kind SelectionKind) ([]DomainCount, error)
		ComponentCounts(ctx context.Context, filter Filter, kind SelectionKind) ([]ComponentCount, error)
		// RecentReflections returns up to limit reflections, newest first, ties broken by higher ID first.
		RecentReflections(ctx context.Context, filter Filter, limit int) ([]RecentReflection, error)
		ReportRows(ctx context.Context, filter Filter) ([]ReportRow, error)
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

// Completion returns part/total as a percentage rounded to one decimal, or 0 when total is 0.
func Completion(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func filterFor(actor *staff.Staff, scope staff.Scope) Filter {
	switch scope {
	case staff.ScopeDepartment:
		return Filter{DepartmentID: actor.DepartmentID}
	case staff.ScopeOrganization:
		return Filter{}
	default:
		return Filter{StaffID: actor.ID}
	}
}

// Dashboard builds the view selected by the actor's capabilities.
func (svc *Service) Dashboard(ctx context.Context, actor *staff.Staff) (Dashboard, error) {
	caps := staff.CapabilitiesOf(actor)
	if caps == 0 {
		return Dashboard{}, staff.ErrNoProfile
	}

	scope := caps.Scope()
	filter := filterFor(actor, scope)
	dash := Dashboard{Scope: scope.String()}
	switch scope {
	case staff.ScopeDepartment, staff.ScopeOrganization:
		rep, err := svc.scopeReport(ctx, filter)
		if err != nil {
			return Dashboard{}, err
		}
		if scope == staff.ScopeDepartment {
			dash.Department = &rep
		} else {
			dash.Organization = &rep
		}
	default:
		rep, err := svc.selfReport(ctx, filter)
		if err != nil {
			return Dashboard{}, err
		}
		dash.Self = &rep
	}
	return dash, nil
}

func (svc *Service) scopeReport(ctx context.Context, filter Filter) (ScopeReport, error) {
	stats, err := svc.repo.Stats(ctx, filter)
	if err != nil {
		return ScopeReport{}, errors.Wrap(err, "computing stats")
	}
	strengths, err := svc.repo.DomainCounts(ctx, filter, Strength)
	if err != nil {
		return ScopeReport{}, errors.Wrap(err, "counting strengths")
	}
	growths, err := svc.repo.DomainCounts(ctx, filter, Growth)
	if err != nil {
		return ScopeReport{}, errors.Wrap(err, "counting growths")
	}
	recent, err := svc.repo.RecentReflections(ctx, filter, recentLimit)
	if err != nil {
		return ScopeReport{}, errors.Wrap(err, "listing recent reflections")
	}

	return ScopeReport{
		TotalTeachers:           stats.TotalTeachers,
		TeachersWithReflections: stats.TeachersWithReflections,
		ReflectionCompletion:    Completion(stats.TeachersWithReflections, stats.TotalTeachers),
		TotalReflections:        stats.TotalReflections,
		GrowthPlans:             stats.GrowthPlans,
		ObservedPlans:           stats.ObservedPlans,
		UnobservedPlans:         stats.GrowthPlans - stats.ObservedPlans,
		StrengthCounts:          sortDomainCounts(strengths),
		GrowthCounts:            sortDomainCounts(growths),
		Recent:                  nonNilRecent(recent),
	}, nil
}

func (svc *Service) selfReport(ctx context.Context, filter Filter) (SelfReport, error) {
	stats, err := svc.repo.Stats(ctx, filter)
	if err != nil {
		return SelfReport{}, errors.Wrap(err, "computing stats")
	}
	strengths, err := svc.repo.ComponentCounts(ctx, filter, Strength)
	if err != nil {
		return SelfReport{}, errors.Wrap(err, "counting strengths")
	}
	growths, err := svc.repo.ComponentCounts(ctx, filter, Growth)
	if err != nil {
		return SelfReport{}, errors.Wrap(err, "counting growths")
	}
	recent, err := svc.repo.RecentReflections(ctx, filter, recentLimit)
	if err != nil {
		return SelfReport{}, errors.Wrap(err, "listing recent reflections")
	}

	return SelfReport{
		TotalReflections: stats.TotalReflections,
		DomainsCovered:   stats.DomainsCovered,
		StrengthsCount:   stats.Strengths,
		GrowthsCount:     stats.Growths,
		TotalGrowthPlans: stats.GrowthPlans,
		ObservedPlans:    stats.ObservedPlans,
		TopStrengths:     topComponents(strengths, topLimit),
		TopGrowths:       topComponents(growths, topLimit),
		Recent:           nonNilRecent(recent),
	}, nil
}

// Report returns the in-scope reflection lines for reviewers.
func (svc *Service) Report(ctx context.Context, actor *staff.Staff) ([]ReportRow, error) {
	caps := staff.CapabilitiesOf(actor)
	if caps == 0 {
		return nil, staff.ErrNoProfile
	}
	if !caps.HasAny(staff.Reviewer) {
		return nil, core.NewAuthorizationError("only reviewers can export reports")
	}
	return svc.repo.ReportRows(ctx, filterFor(actor, caps.Scope()))
}

// sortDomainCounts orders by total desc, then domain name.
func sortDomainCounts(counts []DomainCount) []DomainCount {
	if counts == nil {
		return []DomainCount{}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Total != counts[j].Total {
			return counts[i].Total > counts[j].Total
		}
		if counts[i].DomainName != counts[j].DomainName {
			return counts[i].DomainName < counts[j].DomainName
		}
		return counts[i].DomainID < counts[j].DomainID
	})
	return counts
}

// topComponents keeps the n most selected components, ties broken by name.
func topComponents(counts []ComponentCount, n int) []ComponentCount {
	out := make([]ComponentCount, 0, len(counts))
	for _, c := range counts {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ComponentID < out[j].ComponentID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func nonNilRecent(recent []RecentReflection) []RecentReflection {
	if recent == nil {
		return []RecentReflection{}
	}
	return recent
}
