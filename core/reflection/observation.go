package reflection

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

// ObservationField names one of the reviewer-owned comment fields of an Observation.
type ObservationField string

const (
	HODComment         ObservationField = "hod_comment"
	CoordinatorComment ObservationField = "coordinator_comment"
	PrinComment        ObservationField = "prin_comment"
)

// Owner returns the capability allowed to write f, or 0 for unknown fields.
func (f ObservationField) Owner() staff.Capabilities {
	switch f {
	case HODComment:
		return staff.CanApproveAsHOD
	case CoordinatorComment:
		return staff.CanApproveAsCoordinator
	case PrinComment:
		return staff.CanApproveAsPrincipal
	}
	return 0
}

// set writes text to f only. The other fields keep the values read under the row lock.
func (f ObservationField) set(obs *Observation, text string) {
	switch f {
	case HODComment:
		obs.HODComment = null.StringFrom(text)
	case CoordinatorComment:
		obs.CoordinatorComment = null.StringFrom(text)
	case PrinComment:
		obs.PrinComment = null.StringFrom(text)
	}
}

// FieldFor returns the comment field owned by caps, preferring HOD, then Coordinator, then Principal.
func FieldFor(caps staff.Capabilities) (ObservationField, bool) {
	for _, f := range []ObservationField{HODComment, CoordinatorComment, PrinComment} {
		if caps.Has(f.Owner()) {
			return f, true
		}
	}
	return "", false
}

type observationEmailData struct {
	AuthorName   string
	ReviewerName string
	Field        string
	Comment      string
	GrowthPlanID int64
	Goal         string
}

// SubmitObservation writes text to field on the observation of a growth plan, creating the
// observation on first comment. Only the holder of the field's capability may write it.
func (svc *Service) SubmitObservation(ctx context.Context, actor *staff.Staff, planID int64, field ObservationField, text string) (Observation, error) {
	caps := staff.CapabilitiesOf(actor)
	if !caps.HasAny(staff.Reviewer) {
		return Observation{}, core.NewAuthorizationError("only reviewers can comment on growth plans")
	}
	owner := field.Owner()
	if owner == 0 {
		return Observation{}, core.NewValidationError(nil, core.FieldError{Field: "field", Error: fmt.Sprintf("unknown comment field %q", field)})
	}
	if !caps.Has(owner) {
		return Observation{}, core.NewAuthorizationError(fmt.Sprintf("you cannot write %s", field))
	}

	gp, err := svc.repo.GetGrowthPlan(ctx, planID)
	if err != nil {
		return Observation{}, err
	}
	author, err := svc.staff.GetByID(ctx, gp.StaffID)
	if err != nil {
		return Observation{}, err
	}
	if field == HODComment && author.DepartmentID != actor.DepartmentID {
		return Observation{}, core.NewAuthorizationError("heads of department can only observe plans of their department")
	}

	text = core.CleanString(text)
	if text == "" {
		return Observation{}, core.NewValidationError(nil, core.FieldError{Field: "text", Error: "this field cannot be blank"})
	}

	obs, err := svc.repo.ObserveGrowthPlan(ctx, planID, func(obs *Observation) error {
		field.set(obs, text)
		obs.UpdatedAt = core.Now()
		return nil
	})
	if err != nil {
		return Observation{}, err
	}

	svc.notifyAuthor(ctx, author, *actor, gp, field, text)
	return obs, nil
}

func (svc *Service) notifyAuthor(ctx context.Context, author, reviewer staff.Staff, gp GrowthPlan, field ObservationField, text string) {
	usr, err := svc.users.GetByID(ctx, author.UserID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("observation notification for plan %d: %v", gp.ID, err))
		return
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: author.FullName(), Address: usr.Email}},
		Subject:      "New observation on your growth plan",
		TemplateName: "observation_added",
		TemplateData: observationEmailData{
			AuthorName:   author.FullName(),
			ReviewerName: reviewer.FullName(),
			Field:        string(field),
			Comment:      text,
			GrowthPlanID: gp.ID,
			Goal:         gp.GoalStatement,
		},
	})
}
