package reflection

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/staff"
	"github.com/trezcool/kazi/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("reflection")
	ErrGrowthPlanNotFound = core.NewNotFoundError("growth plan")
	ErrSessionNotFound    = core.NewNotFoundError("wizard session")
	ErrStepNotFound       = core.NewNotFoundError("wizard step")
	ErrPlanLocked         = core.NewConflictError("this growth plan has already been observed and can no longer be edited; open it read-only instead")
)

type (
	Repository interface {
		// CreateReflection writes the reflection with its domains and growth plans in one transaction.
		CreateReflection(ctx context.Context, r Reflection) (Reflection, error)
		GetReflection(ctx context.Context, id int64) (Reflection, error)
		// QueryReflections returns reflections newest first, ties broken by higher ID first.
		QueryReflections(ctx context.Context, filter QueryFilter) ([]Reflection, error)
		// UpsertReflectionDomains replaces the selections of the given domains in one transaction.
		UpsertReflectionDomains(ctx context.Context, reflectionID int64, domains []ReflectionDomain) (Reflection, error)

		CreateGrowthPlan(ctx context.Context, gp GrowthPlan) (GrowthPlan, error)
		GetGrowthPlan(ctx context.Context, id int64) (GrowthPlan, error)
		// UpdateGrowthPlan returns ErrPlanLocked when the plan has an observation.
		UpdateGrowthPlan(ctx context.Context, gp GrowthPlan) (GrowthPlan, error)
		// DeleteGrowthPlan returns ErrPlanLocked when the plan has an observation.
		DeleteGrowthPlan(ctx context.Context, id int64) error

		// ObserveGrowthPlan gets or creates the observation of planID and applies mutate to it
		// while holding a lock on the row. Returns ErrGrowthPlanNotFound for unknown plans.
		ObserveGrowthPlan(ctx context.Context, planID int64, mutate func(obs *Observation) error) (Observation, error)
	}

	Deps struct {
		Repo       Repository
		Sessions   SessionStore
		Catalog    *catalog.Service
		Staff      *staff.Service
		Users      *user.Service
		Mailer     core.EmailService
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Service struct {
		repo       Repository
		sessions   SessionStore
		catalog    *catalog.Service
		staff      *staff.Service
		users      *user.Service
		mailer     core.EmailService
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.Sessions, "Sessions"),
		vala.IsNotNil(deps.Catalog, "Catalog"),
		vala.IsNotNil(deps.Staff, "Staff"),
		vala.IsNotNil(deps.Users, "Users"),
		vala.IsNotNil(deps.Mailer, "Mailer"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
	).CheckAndPanic()

	return &Service{
		repo:       deps.Repo,
		sessions:   deps.Sessions,
		catalog:    deps.Catalog,
		staff:      deps.Staff,
		users:      deps.Users,
		mailer:     deps.Mailer,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
}

func requireTeacher(actor *staff.Staff) error {
	if actor == nil {
		return staff.ErrNoProfile
	}
	if !staff.CapabilitiesOf(actor).Has(staff.IsTeacher) {
		return core.NewAuthorizationError("your staff profile is inactive")
	}
	return nil
}

// validateSelection cleans sel and checks it against its domain.
func (svc *Service) validateSelection(ctx context.Context, sel *DomainSelection, prefix string) ([]core.FieldError, error) {
	sel.clean()
	flds, err := fieldErrors(svc.validate, svc.translator, sel, prefix)
	if err != nil {
		return nil, err
	}

	dom, err := svc.catalog.GetDomain(ctx, sel.DomainID)
	if err != nil {
		if core.IsNotFound(err) {
			return append(flds, core.FieldError{Field: prefixed(prefix, "domain_id"), Error: err.Error()}), nil
		}
		return nil, err
	}
	check := func(field string, ids []int64) {
		for _, id := range ids {
			if !dom.HasComponent(id) {
				flds = append(flds, core.FieldError{
					Field: prefixed(prefix, field),
					Error: fmt.Sprintf("component %d does not belong to %q", id, dom.Name),
				})
				return
			}
		}
	}
	check("strengths", sel.Strengths)
	check("growths", sel.Growths)
	return flds, nil
}

// validateGrowthPlan cleans in, defaults its academic year and checks that the addressed
// components are among allowed.
func (svc *Service) validateGrowthPlan(ctx context.Context, in *GrowthPlanInput, allowed []int64, prefix string) ([]core.FieldError, error) {
	in.clean()
	flds, err := fieldErrors(svc.validate, svc.translator, in, prefix)
	if err != nil {
		return nil, err
	}

	if in.AcademicYearID == 0 {
		ay, err := svc.catalog.CurrentAcademicYear(ctx)
		switch {
		case err == nil:
			in.AcademicYearID = ay.ID
		case core.IsNotFound(err):
			flds = append(flds, core.FieldError{Field: prefixed(prefix, "academic_year_id"), Error: "no current academic year is set"})
		default:
			return nil, err
		}
	} else if _, err = svc.catalog.GetAcademicYear(ctx, in.AcademicYearID); err != nil {
		if !core.IsNotFound(err) {
			return nil, err
		}
		flds = append(flds, core.FieldError{Field: prefixed(prefix, "academic_year_id"), Error: err.Error()})
	}

	allowedSet := make(map[int64]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	for _, id := range in.ComponentsAddressed {
		if !allowedSet[id] {
			flds = append(flds, core.FieldError{
				Field: prefixed(prefix, "components_addressed"),
				Error: fmt.Sprintf("component %d was not selected as a growth in this reflection", id),
			})
			break
		}
	}
	return flds, nil
}

// canView loads the author of a reflection and checks that actor may see it.
func (svc *Service) canView(ctx context.Context, actor *staff.Staff, staffID int64) error {
	if staff.CapabilitiesOf(actor) == 0 {
		return staff.ErrNoProfile
	}
	author, err := svc.staff.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	if !staff.CanView(actor, author) {
		return core.NewAuthorizationError("you do not have permission to view this reflection")
	}
	return nil
}

func (svc *Service) GetReflection(ctx context.Context, actor *staff.Staff, id int64) (Reflection, error) {
	r, err := svc.repo.GetReflection(ctx, id)
	if err != nil {
		return Reflection{}, err
	}
	if err = svc.canView(ctx, actor, r.StaffID); err != nil {
		return Reflection{}, err
	}
	return r, nil
}

// ScopeFilter returns the reflection filter matching scope for actor.
func ScopeFilter(actor *staff.Staff, scope staff.Scope) QueryFilter {
	switch scope {
	case staff.ScopeDepartment:
		return QueryFilter{DepartmentID: actor.DepartmentID}
	case staff.ScopeOrganization:
		return QueryFilter{}
	default:
		return QueryFilter{StaffIDs: []int64{actor.ID}}
	}
}

// QueryReflections lists the reflections visible to actor: their own, their department's, or everyone's.
func (svc *Service) QueryReflections(ctx context.Context, actor *staff.Staff) ([]Reflection, error) {
	caps := staff.CapabilitiesOf(actor)
	if caps == 0 {
		return nil, staff.ErrNoProfile
	}
	return svc.repo.QueryReflections(ctx, ScopeFilter(actor, caps.Scope()))
}

// StaffReflections lists the reflections of one staff member.
func (svc *Service) StaffReflections(ctx context.Context, actor *staff.Staff, staffID int64) ([]Reflection, error) {
	if err := svc.canView(ctx, actor, staffID); err != nil {
		return nil, err
	}
	return svc.repo.QueryReflections(ctx, QueryFilter{StaffIDs: []int64{staffID}})
}

// UpdateReflectionDomains replaces the selections of the given domains of an owned reflection.
func (svc *Service) UpdateReflectionDomains(ctx context.Context, actor *staff.Staff, id int64, sels []DomainSelection) (Reflection, error) {
	if err := requireTeacher(actor); err != nil {
		return Reflection{}, err
	}
	r, err := svc.repo.GetReflection(ctx, id)
	if err != nil {
		return Reflection{}, err
	}
	if r.StaffID != actor.ID {
		return Reflection{}, core.NewAuthorizationError("only the author can edit this reflection")
	}

	allowed := make(map[int64]bool, len(r.Domains))
	for _, rd := range r.Domains {
		allowed[rd.DomainID] = true
	}
	steps, err := svc.Steps(ctx, actor)
	if err != nil {
		return Reflection{}, err
	}
	for _, s := range steps {
		if s.Kind == DomainStep {
			allowed[s.DomainID] = true
		}
	}

	var flds []core.FieldError
	seen := make(map[int64]bool, len(sels))
	domains := make([]ReflectionDomain, 0, len(sels))
	for i := range sels {
		sel := &sels[i]
		prefix := fmt.Sprintf("domains[%d]", i)
		if !allowed[sel.DomainID] || seen[sel.DomainID] {
			flds = append(flds, core.FieldError{Field: prefix + ".domain_id", Error: "invalid or duplicate domain"})
			continue
		}
		seen[sel.DomainID] = true
		selFlds, err := svc.validateSelection(ctx, sel, prefix)
		if err != nil {
			return Reflection{}, err
		}
		flds = append(flds, selFlds...)
		domains = append(domains, sel.toModel())
	}
	if len(flds) > 0 {
		return Reflection{}, core.NewValidationError(nil, flds...)
	}
	if len(domains) == 0 {
		return r, nil
	}
	return svc.repo.UpsertReflectionDomains(ctx, id, domains)
}

func (svc *Service) GetGrowthPlan(ctx context.Context, actor *staff.Staff, id int64) (GrowthPlan, error) {
	gp, err := svc.repo.GetGrowthPlan(ctx, id)
	if err != nil {
		return GrowthPlan{}, err
	}
	if err = svc.canView(ctx, actor, gp.StaffID); err != nil {
		return GrowthPlan{}, err
	}
	return gp, nil
}

// ownedReflection loads a reflection and checks that actor wrote it.
func (svc *Service) ownedReflection(ctx context.Context, actor *staff.Staff, id int64) (Reflection, error) {
	if err := requireTeacher(actor); err != nil {
		return Reflection{}, err
	}
	r, err := svc.repo.GetReflection(ctx, id)
	if err != nil {
		return Reflection{}, err
	}
	if r.StaffID != actor.ID {
		return Reflection{}, core.NewAuthorizationError("only the author can change growth plans of this reflection")
	}
	return r, nil
}

// AddGrowthPlan attaches a new growth plan to an owned reflection.
func (svc *Service) AddGrowthPlan(ctx context.Context, actor *staff.Staff, reflectionID int64, in GrowthPlanInput) (GrowthPlan, error) {
	r, err := svc.ownedReflection(ctx, actor, reflectionID)
	if err != nil {
		return GrowthPlan{}, err
	}
	flds, err := svc.validateGrowthPlan(ctx, &in, r.Growths(), "")
	if err != nil {
		return GrowthPlan{}, err
	}
	if len(flds) > 0 {
		return GrowthPlan{}, core.NewValidationError(nil, flds...)
	}

	now := core.Now()
	gp := in.toModel()
	gp.ReflectionID = r.ID
	gp.StaffID = r.StaffID
	gp.CreatedAt = now
	gp.UpdatedAt = now
	return svc.repo.CreateGrowthPlan(ctx, gp)
}

// UpdateGrowthPlan edits an owned growth plan. Observed plans are locked.
func (svc *Service) UpdateGrowthPlan(ctx context.Context, actor *staff.Staff, id int64, in GrowthPlanInput) (GrowthPlan, error) {
	gp, err := svc.repo.GetGrowthPlan(ctx, id)
	if err != nil {
		return GrowthPlan{}, err
	}
	r, err := svc.ownedReflection(ctx, actor, gp.ReflectionID)
	if err != nil {
		return GrowthPlan{}, err
	}
	if gp.Observed() {
		return GrowthPlan{}, ErrPlanLocked
	}

	flds, err := svc.validateGrowthPlan(ctx, &in, r.Growths(), "")
	if err != nil {
		return GrowthPlan{}, err
	}
	if len(flds) > 0 {
		return GrowthPlan{}, core.NewValidationError(nil, flds...)
	}

	upd := in.toModel()
	upd.ID = gp.ID
	upd.ReflectionID = gp.ReflectionID
	upd.StaffID = gp.StaffID
	upd.CreatedAt = gp.CreatedAt
	upd.UpdatedAt = core.Now()
	return svc.repo.UpdateGrowthPlan(ctx, upd)
}

// DeleteGrowthPlan removes an owned, unobserved growth plan.
func (svc *Service) DeleteGrowthPlan(ctx context.Context, actor *staff.Staff, id int64) error {
	gp, err := svc.repo.GetGrowthPlan(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.ownedReflection(ctx, actor, gp.ReflectionID); err != nil {
		return err
	}
	if gp.Observed() {
		return ErrPlanLocked
	}
	return errors.Wrap(svc.repo.DeleteGrowthPlan(ctx, id), "deleting growth plan")
}
