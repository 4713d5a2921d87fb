package reflection

import (
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

const planDateLayout = "2006-01-02"

type (
	// Reflection is a teacher's self-assessment: per-domain selections plus growth plans.
	Reflection struct {
		ID          int64              `json:"id"`
		StaffID     int64              `json:"staff_id"`
		CreatedAt   time.Time          `json:"created_at"` // UTC
		Domains     []ReflectionDomain `json:"domains"`
		GrowthPlans []GrowthPlan       `json:"growth_plans"`
	}

	// ReflectionDomain holds the strengths and growths selected for one domain.
	// Strengths and Growths never share a component.
	ReflectionDomain struct {
		ID           int64       `json:"id"`
		ReflectionID int64       `json:"reflection_id"`
		DomainID     int64       `json:"domain_id"`
		DomainName   string      `json:"domain_name,omitempty"`
		Strengths    []int64     `json:"strengths"`
		Growths      []int64     `json:"growths"`
		NextSteps    null.String `json:"next_steps"`
	}

	GrowthPlan struct {
		ID                  int64        `json:"id"`
		ReflectionID        int64        `json:"reflection_id"`
		AcademicYearID      int64        `json:"academic_year_id"`
		GoalStatement       string       `json:"goal_statement"`
		ComponentsAddressed []int64      `json:"components_addressed"`
		IndicatorsOfSuccess string       `json:"indicators_of_success"`
		Actions             string       `json:"actions"`
		Timelines           string       `json:"timelines"`
		Resources           null.String  `json:"resources"`
		EvaluatorName       string       `json:"evaluator_name"`
		Date                time.Time    `json:"date"`
		CreatedAt           time.Time    `json:"created_at"` // UTC
		UpdatedAt           time.Time    `json:"updated_at"` // UTC
		Observation         *Observation `json:"observation"`

		// StaffID is the author of the parent reflection.
		StaffID int64 `json:"staff_id"`
	}

	// Observation is the reviewers' commentary on a growth plan. Its existence locks the plan.
	Observation struct {
		ID                 int64       `json:"id"`
		GrowthPlanID       int64       `json:"growth_plan_id"`
		HODComment         null.String `json:"hod_comment"`
		CoordinatorComment null.String `json:"coordinator_comment"`
		PrinComment        null.String `json:"prin_comment"`
		CreatedAt          time.Time   `json:"created_at"` // UTC
		UpdatedAt          time.Time   `json:"updated_at"` // UTC
	}
)

func (gp GrowthPlan) Observed() bool { return gp.Observation != nil }

// Growths returns the union of the growth selections of all domains, sorted.
func (r Reflection) Growths() []int64 {
	var all []int64
	for _, rd := range r.Domains {
		all = append(all, rd.Growths...)
	}
	return normalizeIDs(all)
}

// DomainSelection is the payload of a domain step.
type DomainSelection struct {
	DomainID  int64   `json:"domain_id"`
	Strengths []int64 `json:"strengths"`
	Growths   []int64 `json:"growths"`
	NextSteps string  `json:"next_steps" validate:"max=5000"`
}

func (ds *DomainSelection) clean() {
	ds.Strengths = normalizeIDs(ds.Strengths)
	ds.Growths = normalizeIDs(ds.Growths)
	ds.NextSteps = core.CleanString(ds.NextSteps)
}

func (ds DomainSelection) toModel() ReflectionDomain {
	return ReflectionDomain{
		DomainID:  ds.DomainID,
		Strengths: ds.Strengths,
		Growths:   ds.Growths,
		NextSteps: null.NewString(ds.NextSteps, ds.NextSteps != ""),
	}
}

// GrowthPlanInput is the payload of the growth-plan step and of growth plan edits.
type GrowthPlanInput struct {
	AcademicYearID      int64   `json:"academic_year_id"`
	GoalStatement       string  `json:"goal_statement" validate:"notblank"`
	ComponentsAddressed []int64 `json:"components_addressed"`
	IndicatorsOfSuccess string  `json:"indicators_of_success" validate:"notblank"`
	Actions             string  `json:"actions" validate:"notblank"`
	Timelines           string  `json:"timelines" validate:"notblank,max=150"`
	Resources           string  `json:"resources"`
	EvaluatorName       string  `json:"evaluator_name" validate:"notblank,max=200"`
	Date                string  `json:"date" validate:"required,datetime=2006-01-02"`
}

func (in *GrowthPlanInput) clean() {
	in.GoalStatement = core.CleanString(in.GoalStatement)
	in.IndicatorsOfSuccess = core.CleanString(in.IndicatorsOfSuccess)
	in.Actions = core.CleanString(in.Actions)
	in.Timelines = core.CleanString(in.Timelines)
	in.Resources = core.CleanString(in.Resources)
	in.EvaluatorName = core.CleanString(in.EvaluatorName)
	in.Date = core.CleanString(in.Date)
	in.ComponentsAddressed = normalizeIDs(in.ComponentsAddressed)
}

// toModel expects a validated input.
func (in GrowthPlanInput) toModel() GrowthPlan {
	date, _ := time.Parse(planDateLayout, in.Date)
	return GrowthPlan{
		AcademicYearID:      in.AcademicYearID,
		GoalStatement:       in.GoalStatement,
		ComponentsAddressed: in.ComponentsAddressed,
		IndicatorsOfSuccess: in.IndicatorsOfSuccess,
		Actions:             in.Actions,
		Timelines:           in.Timelines,
		Resources:           null.NewString(in.Resources, in.Resources != ""),
		EvaluatorName:       in.EvaluatorName,
		Date:                date,
	}
}

// Submission is the full set of wizard data committed at once.
type Submission struct {
	Domains    []DomainSelection `json:"domains"`
	GrowthPlan GrowthPlanInput   `json:"growth_plan"`
}

type QueryFilter struct {
	StaffIDs []int64 `query:"-"`
	// DepartmentID limits results to authors from this department when set.
	DepartmentID int64 `query:"-"`
	ActiveOnly   bool  `query:"-"`
}

// normalizeIDs sorts ids and drops duplicates and zero values.
func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func intersect(a, b []int64) []int64 {
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	var out []int64
	for _, id := range b {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
