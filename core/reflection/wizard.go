package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/staff"
)

type StepKind string

const (
	DomainStep     StepKind = "domain"
	GrowthPlanStep StepKind = "growth_plan"

	GrowthPlanStepKey = "growth_plan"
	domainStepPrefix  = "domain_"
)

// Step describes one page of the reflection wizard.
type Step struct {
	Key      string   `json:"key"`
	Kind     StepKind `json:"kind"`
	DomainID int64    `json:"domain_id,omitempty"`
}

func DomainStepKey(domainID int64) string {
	return domainStepPrefix + strconv.FormatInt(domainID, 10)
}

// BuildSteps returns one domain step per domain, in domain ID order, followed by the growth-plan step.
func BuildSteps(domains []catalog.Domain) []Step {
	ids := make([]int64, 0, len(domains))
	for _, d := range domains {
		ids = append(ids, d.ID)
	}
	ids = normalizeIDs(ids)

	steps := make([]Step, 0, len(ids)+1)
	for _, id := range ids {
		steps = append(steps, Step{Key: DomainStepKey(id), Kind: DomainStep, DomainID: id})
	}
	return append(steps, Step{Key: GrowthPlanStepKey, Kind: GrowthPlanStep})
}

type (
	// Session is the in-progress state of a wizard run. Nothing is persisted until the final step.
	Session struct {
		ID         string                     `json:"id"`
		StaffID    int64                      `json:"staff_id"`
		Steps      []Step                     `json:"steps"`
		Current    int                        `json:"current"`
		Domains    map[string]DomainSelection `json:"domains"`
		GrowthPlan *GrowthPlanInput           `json:"growth_plan,omitempty"`
		CreatedAt  time.Time                  `json:"created_at"`
	}

	// SessionStore keeps wizard sessions between requests. Sessions expire when abandoned.
	SessionStore interface {
		SaveSession(ctx context.Context, sess Session) error
		// GetSession returns ErrSessionNotFound for unknown or expired sessions.
		GetSession(ctx context.Context, id string) (Session, error)
		DeleteSession(ctx context.Context, id string) error
		// TakeSession removes and returns session id in one step; only one caller can take a session.
		TakeSession(ctx context.Context, id string) (Session, error)
	}

	// StepForm is the definition of a wizard step as presented to the client.
	StepForm struct {
		SessionID string   `json:"session_id"`
		Step      Step     `json:"step"`
		Index     int      `json:"index"`
		Steps     []Step   `json:"steps"`
		Completed []string `json:"completed"`

		// domain step
		Domain *catalog.Domain `json:"domain,omitempty"`

		// growth-plan step
		Choices               []catalog.Component `json:"choices,omitempty"`
		CurrentAcademicYearID int64               `json:"current_academic_year_id,omitempty"`

		// previously entered data, if any
		Data interface{} `json:"data,omitempty"`
	}

	StepResult struct {
		Done         bool      `json:"done"`
		ReflectionID int64     `json:"reflection_id,omitempty"`
		Next         *StepForm `json:"next,omitempty"`
	}
)

func (sess Session) stepIndex(key string) int {
	for i, s := range sess.Steps {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// growthChoices is the union of growths selected in the completed domain steps.
func (sess Session) growthChoices() []int64 {
	var all []int64
	for _, s := range sess.Steps {
		if sel, ok := sess.Domains[s.Key]; ok && s.Kind == DomainStep {
			all = append(all, sel.Growths...)
		}
	}
	return normalizeIDs(all)
}

func (sess Session) completed() []string {
	keys := make([]string, 0, len(sess.Steps))
	for _, s := range sess.Steps {
		if _, ok := sess.Domains[s.Key]; ok {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

func (sess Session) missingSteps() []string {
	var keys []string
	for _, s := range sess.Steps {
		if _, ok := sess.Domains[s.Key]; !ok && s.Kind == DomainStep {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Steps resolves the wizard steps of actor. Without an active profile only the growth-plan step remains.
func (svc *Service) Steps(ctx context.Context, actor *staff.Staff) ([]Step, error) {
	if !staff.CapabilitiesOf(actor).Has(staff.IsTeacher) {
		return BuildSteps(nil), nil
	}
	domains, err := svc.catalog.DomainsForRole(ctx, actor.RoleID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving wizard domains")
	}
	return BuildSteps(domains), nil
}

// StartWizard opens a new wizard session for actor and returns its first step.
func (svc *Service) StartWizard(ctx context.Context, actor *staff.Staff) (StepForm, error) {
	if err := requireTeacher(actor); err != nil {
		return StepForm{}, err
	}
	steps, err := svc.Steps(ctx, actor)
	if err != nil {
		return StepForm{}, err
	}
	sess := Session{
		ID:        uuid.NewString(),
		StaffID:   actor.ID,
		Steps:     steps,
		Domains:   make(map[string]DomainSelection, len(steps)),
		CreatedAt: core.Now(),
	}
	if err = svc.sessions.SaveSession(ctx, sess); err != nil {
		return StepForm{}, errors.Wrap(err, "saving wizard session")
	}
	return svc.stepForm(ctx, sess, 0)
}

// WizardStep returns the form of step key in session sid, or of the current step when key is empty.
func (svc *Service) WizardStep(ctx context.Context, actor *staff.Staff, sid, key string) (StepForm, error) {
	sess, err := svc.getSession(ctx, actor, sid)
	if err != nil {
		return StepForm{}, err
	}
	idx := sess.Current
	if key != "" {
		if idx = sess.stepIndex(key); idx < 0 {
			return StepForm{}, ErrStepNotFound
		}
	}
	return svc.stepForm(ctx, sess, idx)
}

// SubmitStep validates and stores the payload of step key. Submitting the growth-plan step commits the reflection.
func (svc *Service) SubmitStep(ctx context.Context, actor *staff.Staff, sid, key string, payload json.RawMessage) (StepResult, error) {
	sess, err := svc.getSession(ctx, actor, sid)
	if err != nil {
		return StepResult{}, err
	}
	idx := sess.stepIndex(key)
	if idx < 0 {
		return StepResult{}, ErrStepNotFound
	}
	step := sess.Steps[idx]

	switch step.Kind {
	case DomainStep:
		var sel DomainSelection
		if err = decodePayload(payload, &sel); err != nil {
			return StepResult{}, err
		}
		sel.DomainID = step.DomainID
		flds, err := svc.validateSelection(ctx, &sel, "")
		if err != nil {
			return StepResult{}, err
		}
		if len(flds) > 0 {
			return StepResult{}, core.NewValidationError(nil, flds...)
		}

		sess.Domains[step.Key] = sel
		sess.Current = idx + 1
		if err = svc.sessions.SaveSession(ctx, sess); err != nil {
			return StepResult{}, errors.Wrap(err, "saving wizard session")
		}
		next, err := svc.stepForm(ctx, sess, sess.Current)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{Next: &next}, nil

	default:
		var in GrowthPlanInput
		if err = decodePayload(payload, &in); err != nil {
			return StepResult{}, err
		}
		if missing := sess.missingSteps(); len(missing) > 0 {
			flds := make([]core.FieldError, 0, len(missing))
			for _, k := range missing {
				flds = append(flds, core.FieldError{Field: k, Error: "this step has not been completed"})
			}
			return StepResult{}, core.NewValidationError(nil, flds...)
		}

		// a concurrent submit of the same session finds it gone
		if sess, err = svc.sessions.TakeSession(ctx, sess.ID); err != nil {
			return StepResult{}, err
		}
		if sess.Domains == nil {
			sess.Domains = make(map[string]DomainSelection)
		}

		sub := Submission{GrowthPlan: in}
		for _, s := range sess.Steps {
			if s.Kind == DomainStep {
				sub.Domains = append(sub.Domains, sess.Domains[s.Key])
			}
		}
		id, err := svc.commit(ctx, actor, sub, sess.Steps)
		if err != nil {
			if core.IsValidation(err) {
				sess.GrowthPlan = &in
				sess.Current = idx
			}
			if saveErr := svc.sessions.SaveSession(ctx, sess); saveErr != nil {
				return StepResult{}, errors.Wrap(saveErr, "restoring wizard session")
			}
			return StepResult{}, err
		}
		return StepResult{Done: true, ReflectionID: id}, nil
	}
}

// CancelWizard discards session sid without persisting anything.
func (svc *Service) CancelWizard(ctx context.Context, actor *staff.Staff, sid string) error {
	if _, err := svc.getSession(ctx, actor, sid); err != nil {
		return err
	}
	return svc.sessions.DeleteSession(ctx, sid)
}

// Commit validates a full submission against actor's wizard steps and persists it atomically.
func (svc *Service) Commit(ctx context.Context, actor *staff.Staff, sub Submission) (int64, error) {
	if err := requireTeacher(actor); err != nil {
		return 0, err
	}
	steps, err := svc.Steps(ctx, actor)
	if err != nil {
		return 0, err
	}
	return svc.commit(ctx, actor, sub, steps)
}

func (svc *Service) commit(ctx context.Context, actor *staff.Staff, sub Submission, steps []Step) (int64, error) {
	var flds []core.FieldError

	expected := make(map[int64]bool, len(steps))
	for _, s := range steps {
		if s.Kind == DomainStep {
			expected[s.DomainID] = true
		}
	}

	seen := make(map[int64]bool, len(sub.Domains))
	domains := make([]ReflectionDomain, 0, len(sub.Domains))
	var growths []int64
	for i := range sub.Domains {
		sel := &sub.Domains[i]
		prefix := fmt.Sprintf("domains[%d]", i)
		switch {
		case !expected[sel.DomainID]:
			flds = append(flds, core.FieldError{Field: prefix + ".domain_id", Error: "this domain is not part of your reflection"})
			continue
		case seen[sel.DomainID]:
			flds = append(flds, core.FieldError{Field: prefix + ".domain_id", Error: "duplicate domain"})
			continue
		}
		seen[sel.DomainID] = true

		selFlds, err := svc.validateSelection(ctx, sel, prefix)
		if err != nil {
			return 0, err
		}
		flds = append(flds, selFlds...)
		domains = append(domains, sel.toModel())
		growths = append(growths, sel.Growths...)
	}
	for _, s := range steps {
		if s.Kind == DomainStep && !seen[s.DomainID] {
			flds = append(flds, core.FieldError{Field: s.Key, Error: "this step has not been completed"})
		}
	}

	gpFlds, err := svc.validateGrowthPlan(ctx, &sub.GrowthPlan, normalizeIDs(growths), "growth_plan")
	if err != nil {
		return 0, err
	}
	flds = append(flds, gpFlds...)
	if len(flds) > 0 {
		return 0, core.NewValidationError(nil, flds...)
	}

	now := core.Now()
	plan := sub.GrowthPlan.toModel()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	r, err := svc.repo.CreateReflection(ctx, Reflection{
		StaffID:     actor.ID,
		CreatedAt:   now,
		Domains:     domains,
		GrowthPlans: []GrowthPlan{plan},
	})
	if err != nil {
		return 0, errors.Wrap(err, "committing reflection")
	}
	return r.ID, nil
}

func (svc *Service) getSession(ctx context.Context, actor *staff.Staff, sid string) (Session, error) {
	if err := requireTeacher(actor); err != nil {
		return Session{}, err
	}
	sess, err := svc.sessions.GetSession(ctx, sid)
	if err != nil {
		return Session{}, err
	}
	if sess.StaffID != actor.ID {
		return Session{}, ErrSessionNotFound
	}
	if sess.Domains == nil {
		sess.Domains = make(map[string]DomainSelection)
	}
	return sess, nil
}

func (svc *Service) stepForm(ctx context.Context, sess Session, idx int) (StepForm, error) {
	if idx >= len(sess.Steps) {
		idx = len(sess.Steps) - 1
	}
	step := sess.Steps[idx]
	form := StepForm{
		SessionID: sess.ID,
		Step:      step,
		Index:     idx,
		Steps:     sess.Steps,
		Completed: sess.completed(),
	}

	if step.Kind == DomainStep {
		dom, err := svc.catalog.GetDomain(ctx, step.DomainID)
		if err != nil {
			return StepForm{}, err
		}
		form.Domain = &dom
		if sel, ok := sess.Domains[step.Key]; ok {
			form.Data = sel
		}
		return form, nil
	}

	choices := sess.growthChoices()
	comps, err := svc.catalog.GetComponents(ctx, choices...)
	if err != nil {
		return StepForm{}, err
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].ID < comps[j].ID })
	form.Choices = comps
	if ay, err := svc.catalog.CurrentAcademicYear(ctx); err == nil {
		form.CurrentAcademicYearID = ay.ID
	} else if !core.IsNotFound(err) {
		return StepForm{}, err
	}
	if sess.GrowthPlan != nil {
		form.Data = *sess.GrowthPlan
	}
	return form, nil
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return core.NewValidationError(errors.Wrap(err, "invalid step payload"))
	}
	return nil
}
