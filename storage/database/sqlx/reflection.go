package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/dashboard"
	"github.com/trezcool/kazi/core/reflection"
)

type (
	reflectionRow struct {
		ID        int64     `db:"id"`
		StaffID   int64     `db:"staff_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	reflectionDomainRow struct {
		ID           int64       `db:"id"`
		ReflectionID int64       `db:"reflection_id"`
		DomainID     int64       `db:"domain_id"`
		DomainName   string      `db:"domain_name"`
		NextSteps    null.String `db:"next_steps"`
	}

	selectionRow struct {
		ReflectionDomainID int64  `db:"reflection_domain_id"`
		ComponentID        int64  `db:"component_id"`
		Kind               string `db:"kind"`
	}

	growthPlanRow struct {
		ID                  int64       `db:"id"`
		ReflectionID        int64       `db:"reflection_id"`
		AcademicYearID      int64       `db:"academic_year_id"`
		GoalStatement       string      `db:"goal_statement"`
		IndicatorsOfSuccess string      `db:"indicators_of_success"`
		Actions             string      `db:"actions"`
		Timelines           string      `db:"timelines"`
		Resources           null.String `db:"resources"`
		EvaluatorName       string      `db:"evaluator_name"`
		PlanDate            time.Time   `db:"plan_date"`
		CreatedAt           time.Time   `db:"created_at"`
		UpdatedAt           time.Time   `db:"updated_at"`
		StaffID             int64       `db:"staff_id"`
	}

	planComponentRow struct {
		GrowthPlanID int64 `db:"growth_plan_id"`
		ComponentID  int64 `db:"component_id"`
	}

	observationRow struct {
		ID                 int64       `db:"id"`
		GrowthPlanID       int64       `db:"growth_plan_id"`
		HODComment         null.String `db:"hod_comment"`
		CoordinatorComment null.String `db:"coordinator_comment"`
		PrinComment        null.String `db:"prin_comment"`
		CreatedAt          time.Time   `db:"created_at"`
		UpdatedAt          time.Time   `db:"updated_at"`
	}
)

func (r growthPlanRow) toModel() reflection.GrowthPlan {
	return reflection.GrowthPlan{
		ID:                  r.ID,
		ReflectionID:        r.ReflectionID,
		AcademicYearID:      r.AcademicYearID,
		GoalStatement:       r.GoalStatement,
		ComponentsAddressed: make([]int64, 0),
		IndicatorsOfSuccess: r.IndicatorsOfSuccess,
		Actions:             r.Actions,
		Timelines:           r.Timelines,
		Resources:           r.Resources,
		EvaluatorName:       r.EvaluatorName,
		Date:                time.Date(r.PlanDate.Year(), r.PlanDate.Month(), r.PlanDate.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
		StaffID:             r.StaffID,
	}
}

func (r observationRow) toModel() reflection.Observation {
	return reflection.Observation{
		ID:                 r.ID,
		GrowthPlanID:       r.GrowthPlanID,
		HODComment:         r.HODComment,
		CoordinatorComment: r.CoordinatorComment,
		PrinComment:        r.PrinComment,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

const observationColumns = "id, growth_plan_id, hod_comment, coordinator_comment, prin_comment, created_at, updated_at"

// notObserved restricts growth_plan writes to plans without an observation.
const notObserved = "NOT EXISTS (SELECT 1 FROM observation o WHERE o.growth_plan_id = growth_plan.id)"

type reflectionRepository struct {
	db core.DB
}

var _ reflection.Repository = (*reflectionRepository)(nil) // interface compliance check

func NewReflectionRepository(db core.DB) *reflectionRepository {
	return &reflectionRepository{db: db}
}

// insertSelections stores the strengths and growths of a reflection domain.
func insertSelections(ctx context.Context, tx *sqlx.Tx, rd reflection.ReflectionDomain) error {
	if len(rd.Strengths)+len(rd.Growths) == 0 {
		return nil
	}
	b := psql.Insert("reflection_domain_component").Columns("reflection_domain_id", "component_id", "kind")
	for _, id := range rd.Strengths {
		b = b.Values(rd.ID, id, string(dashboard.Strength))
	}
	for _, id := range rd.Growths {
		b = b.Values(rd.ID, id, string(dashboard.Growth))
	}
	_, err := execBuilt(ctx, tx, b)
	return trapErr(err, nil, "inserting selections")
}

func insertPlanComponents(ctx context.Context, tx *sqlx.Tx, gp reflection.GrowthPlan) error {
	if len(gp.ComponentsAddressed) == 0 {
		return nil
	}
	b := psql.Insert("growth_plan_component").Columns("growth_plan_id", "component_id")
	for _, id := range gp.ComponentsAddressed {
		b = b.Values(gp.ID, id)
	}
	_, err := execBuilt(ctx, tx, b)
	return trapErr(err, nil, "inserting growth plan components")
}

func insertGrowthPlan(ctx context.Context, tx *sqlx.Tx, gp reflection.GrowthPlan) (reflection.GrowthPlan, error) {
	err := tx.GetContext(ctx, &gp.ID, `
		INSERT INTO growth_plan (reflection_id, academic_year_id, goal_statement, indicators_of_success, actions,
			timelines, resources, evaluator_name, plan_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		gp.ReflectionID, gp.AcademicYearID, gp.GoalStatement, gp.IndicatorsOfSuccess, gp.Actions,
		gp.Timelines, gp.Resources, gp.EvaluatorName, gp.Date, gp.CreatedAt, gp.UpdatedAt,
	)
	if err != nil {
		return reflection.GrowthPlan{}, trapErr(err, nil, "inserting growth plan")
	}
	if err = insertPlanComponents(ctx, tx, gp); err != nil {
		return reflection.GrowthPlan{}, err
	}
	gp.Observation = nil
	return gp, nil
}

// CreateReflection stores the reflection with its domains and growth plans in one transaction.
// The result carries the generated IDs; joined names are not loaded.
func (repo *reflectionRepository) CreateReflection(ctx context.Context, r reflection.Reflection) (reflection.Reflection, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &r.ID,
			"INSERT INTO self_reflection (staff_id, created_at) VALUES ($1, $2) RETURNING id", r.StaffID, r.CreatedAt)
		if err != nil {
			return trapErr(err, nil, "inserting reflection")
		}

		for i, rd := range r.Domains {
			rd.ReflectionID = r.ID
			err = tx.GetContext(ctx, &rd.ID,
				"INSERT INTO reflection_domain (reflection_id, domain_id, next_steps) VALUES ($1, $2, $3) RETURNING id",
				rd.ReflectionID, rd.DomainID, rd.NextSteps)
			if err != nil {
				return trapErr(err, nil, "inserting reflection domain")
			}
			if err = insertSelections(ctx, tx, rd); err != nil {
				return err
			}
			r.Domains[i] = rd
		}

		for i, gp := range r.GrowthPlans {
			gp.ReflectionID = r.ID
			gp.StaffID = r.StaffID
			if gp, err = insertGrowthPlan(ctx, tx, gp); err != nil {
				return err
			}
			r.GrowthPlans[i] = gp
		}
		return nil
	})
	if err != nil {
		return reflection.Reflection{}, err
	}
	return r, nil
}

// loadChildren fills the domains and growth plans of refls.
func (repo *reflectionRepository) loadChildren(ctx context.Context, refls []reflection.Reflection) error {
	if len(refls) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(refls))
	index := make(map[int64]int, len(refls))
	for i, r := range refls {
		ids = append(ids, r.ID)
		index[r.ID] = i
		refls[i].Domains = make([]reflection.ReflectionDomain, 0)
		refls[i].GrowthPlans = make([]reflection.GrowthPlan, 0)
	}

	var rdRows []reflectionDomainRow
	err := selectBuilt(ctx, repo.db, &rdRows, psql.
		Select("rd.id", "rd.reflection_id", "rd.domain_id", "d.name AS domain_name", "rd.next_steps").
		From("reflection_domain rd").
		Join("domain d ON d.id = rd.domain_id").
		Where(sq.Eq{"rd.reflection_id": ids}).
		OrderBy("rd.id"))
	if err != nil {
		return errors.Wrap(err, "querying reflection domains")
	}
	var selRows []selectionRow
	err = selectBuilt(ctx, repo.db, &selRows, psql.
		Select("rdc.reflection_domain_id", "rdc.component_id", "rdc.kind").
		From("reflection_domain_component rdc").
		Join("reflection_domain rd ON rd.id = rdc.reflection_domain_id").
		Where(sq.Eq{"rd.reflection_id": ids}).
		OrderBy("rdc.component_id"))
	if err != nil {
		return errors.Wrap(err, "querying selections")
	}

	strengths := make(map[int64][]int64)
	growths := make(map[int64][]int64)
	for _, s := range selRows {
		if s.Kind == string(dashboard.Strength) {
			strengths[s.ReflectionDomainID] = append(strengths[s.ReflectionDomainID], s.ComponentID)
		} else {
			growths[s.ReflectionDomainID] = append(growths[s.ReflectionDomainID], s.ComponentID)
		}
	}
	for _, row := range rdRows {
		i := index[row.ReflectionID]
		refls[i].Domains = append(refls[i].Domains, reflection.ReflectionDomain{
			ID:           row.ID,
			ReflectionID: row.ReflectionID,
			DomainID:     row.DomainID,
			DomainName:   row.DomainName,
			Strengths:    orEmpty(strengths[row.ID]),
			Growths:      orEmpty(growths[row.ID]),
			NextSteps:    row.NextSteps,
		})
	}

	plans, err := repo.loadPlans(ctx, sq.Eq{"gp.reflection_id": ids})
	if err != nil {
		return err
	}
	for _, gp := range plans {
		i := index[gp.ReflectionID]
		refls[i].GrowthPlans = append(refls[i].GrowthPlans, gp)
	}
	return nil
}

// loadPlans returns the growth plans matching pred with their components and observations.
func (repo *reflectionRepository) loadPlans(ctx context.Context, pred sq.Sqlizer) ([]reflection.GrowthPlan, error) {
	var rows []growthPlanRow
	err := selectBuilt(ctx, repo.db, &rows, psql.
		Select("gp.id", "gp.reflection_id", "gp.academic_year_id", "gp.goal_statement", "gp.indicators_of_success",
			"gp.actions", "gp.timelines", "gp.resources", "gp.evaluator_name", "gp.plan_date", "gp.created_at",
			"gp.updated_at", "r.staff_id").
		From("growth_plan gp").
		Join("self_reflection r ON r.id = gp.reflection_id").
		Where(pred).
		OrderBy("gp.id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying growth plans")
	}
	plans := make([]reflection.GrowthPlan, 0, len(rows))
	if len(rows) == 0 {
		return plans, nil
	}

	ids := make([]int64, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for i, r := range rows {
		ids = append(ids, r.ID)
		index[r.ID] = i
		plans = append(plans, r.toModel())
	}

	var compRows []planComponentRow
	err = selectBuilt(ctx, repo.db, &compRows, psql.
		Select("growth_plan_id", "component_id").
		From("growth_plan_component").
		Where(sq.Eq{"growth_plan_id": ids}).
		OrderBy("component_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying growth plan components")
	}
	for _, c := range compRows {
		i := index[c.GrowthPlanID]
		plans[i].ComponentsAddressed = append(plans[i].ComponentsAddressed, c.ComponentID)
	}

	var obsRows []observationRow
	err = selectBuilt(ctx, repo.db, &obsRows, psql.
		Select(observationColumns).
		From("observation").
		Where(sq.Eq{"growth_plan_id": ids}))
	if err != nil {
		return nil, errors.Wrap(err, "querying observations")
	}
	for _, o := range obsRows {
		obs := o.toModel()
		plans[index[o.GrowthPlanID]].Observation = &obs
	}
	return plans, nil
}

func (repo *reflectionRepository) GetReflection(ctx context.Context, id int64) (reflection.Reflection, error) {
	var row reflectionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT id, staff_id, created_at FROM self_reflection WHERE id = $1", id); err != nil {
		return reflection.Reflection{}, trapErr(err, reflection.ErrNotFound, "getting reflection")
	}
	refls := []reflection.Reflection{{ID: row.ID, StaffID: row.StaffID, CreatedAt: row.CreatedAt.UTC()}}
	if err := repo.loadChildren(ctx, refls); err != nil {
		return reflection.Reflection{}, err
	}
	return refls[0], nil
}

func (repo *reflectionRepository) QueryReflections(ctx context.Context, filter reflection.QueryFilter) ([]reflection.Reflection, error) {
	b := psql.Select("r.id", "r.staff_id", "r.created_at").
		From("self_reflection r").
		Join("staff s ON s.id = r.staff_id").
		OrderBy("r.created_at DESC", "r.id DESC")
	if len(filter.StaffIDs) > 0 {
		b = b.Where(sq.Eq{"r.staff_id": filter.StaffIDs})
	}
	if filter.DepartmentID != 0 {
		b = b.Where(sq.Eq{"s.department_id": filter.DepartmentID})
	}
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"s.is_active": true})
	}

	var rows []reflectionRow
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying reflections")
	}
	refls := make([]reflection.Reflection, 0, len(rows))
	for _, row := range rows {
		refls = append(refls, reflection.Reflection{ID: row.ID, StaffID: row.StaffID, CreatedAt: row.CreatedAt.UTC()})
	}
	if err := repo.loadChildren(ctx, refls); err != nil {
		return nil, err
	}
	return refls, nil
}

// UpsertReflectionDomains creates or replaces the given domain selections of a reflection.
func (repo *reflectionRepository) UpsertReflectionDomains(ctx context.Context, reflectionID int64, domains []reflection.ReflectionDomain) (reflection.Reflection, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, "SELECT id FROM self_reflection WHERE id = $1 FOR UPDATE", reflectionID)
		if err != nil {
			return trapErr(err, reflection.ErrNotFound, "locking reflection")
		}

		for _, rd := range domains {
			rd.ReflectionID = reflectionID
			err = tx.GetContext(ctx, &rd.ID, `
				INSERT INTO reflection_domain (reflection_id, domain_id, next_steps) VALUES ($1, $2, $3)
				ON CONFLICT (reflection_id, domain_id) DO UPDATE SET next_steps = EXCLUDED.next_steps
				RETURNING id`,
				rd.ReflectionID, rd.DomainID, rd.NextSteps)
			if err != nil {
				return trapErr(err, nil, "upserting reflection domain")
			}
			if _, err = tx.ExecContext(ctx, "DELETE FROM reflection_domain_component WHERE reflection_domain_id = $1", rd.ID); err != nil {
				return errors.Wrap(err, "clearing selections")
			}
			if err = insertSelections(ctx, tx, rd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return reflection.Reflection{}, err
	}
	return repo.GetReflection(ctx, reflectionID)
}

func (repo *reflectionRepository) CreateGrowthPlan(ctx context.Context, gp reflection.GrowthPlan) (reflection.GrowthPlan, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		found, err := exists(ctx, tx, "self_reflection", gp.ReflectionID)
		if err != nil {
			return errors.Wrap(err, "checking reflection")
		}
		if !found {
			return reflection.ErrNotFound
		}
		gp, err = insertGrowthPlan(ctx, tx, gp)
		return err
	})
	if err != nil {
		return reflection.GrowthPlan{}, err
	}
	return gp, nil
}

func (repo *reflectionRepository) GetGrowthPlan(ctx context.Context, id int64) (reflection.GrowthPlan, error) {
	plans, err := repo.loadPlans(ctx, sq.Eq{"gp.id": id})
	if err != nil {
		return reflection.GrowthPlan{}, err
	}
	if len(plans) == 0 {
		return reflection.GrowthPlan{}, reflection.ErrGrowthPlanNotFound
	}
	return plans[0], nil
}

// lockedOrMissing tells apart a missing plan from an observed one after a guarded write touched no row.
func lockedOrMissing(ctx context.Context, exec core.DBExecutor, id int64) error {
	found, err := exists(ctx, exec, "growth_plan", id)
	if err != nil {
		return errors.Wrap(err, "checking growth plan")
	}
	if found {
		return reflection.ErrPlanLocked
	}
	return reflection.ErrGrowthPlanNotFound
}

// UpdateGrowthPlan rewrites an unobserved growth plan and its addressed components.
func (repo *reflectionRepository) UpdateGrowthPlan(ctx context.Context, gp reflection.GrowthPlan) (reflection.GrowthPlan, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := execBuilt(ctx, tx, psql.Update("growth_plan").
			Set("academic_year_id", gp.AcademicYearID).
			Set("goal_statement", gp.GoalStatement).
			Set("indicators_of_success", gp.IndicatorsOfSuccess).
			Set("actions", gp.Actions).
			Set("timelines", gp.Timelines).
			Set("resources", gp.Resources).
			Set("evaluator_name", gp.EvaluatorName).
			Set("plan_date", gp.Date).
			Set("updated_at", gp.UpdatedAt).
			Where(sq.Eq{"id": gp.ID}).
			Where(notObserved))
		if err != nil {
			return trapErr(err, nil, "updating growth plan")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return lockedOrMissing(ctx, tx, gp.ID)
		}

		if _, err = tx.ExecContext(ctx, "DELETE FROM growth_plan_component WHERE growth_plan_id = $1", gp.ID); err != nil {
			return errors.Wrap(err, "clearing growth plan components")
		}
		return insertPlanComponents(ctx, tx, gp)
	})
	if err != nil {
		return reflection.GrowthPlan{}, err
	}
	gp.Observation = nil
	return gp, nil
}

func (repo *reflectionRepository) DeleteGrowthPlan(ctx context.Context, id int64) error {
	res, err := execBuilt(ctx, repo.db, psql.Delete("growth_plan").Where(sq.Eq{"id": id}).Where(notObserved))
	if err != nil {
		return errors.Wrap(err, "deleting growth plan")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lockedOrMissing(ctx, repo.db, id)
	}
	return nil
}

// ObserveGrowthPlan creates the plan's observation if missing and applies mutate to it,
// holding row locks on both the plan and the observation until commit.
func (repo *reflectionRepository) ObserveGrowthPlan(ctx context.Context, planID int64, mutate func(obs *reflection.Observation) error) (reflection.Observation, error) {
	var obs reflection.Observation
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.GetContext(ctx, &id, "SELECT id FROM growth_plan WHERE id = $1 FOR UPDATE", planID); err != nil {
			return trapErr(err, reflection.ErrGrowthPlanNotFound, "locking growth plan")
		}

		now := core.Now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO observation (growth_plan_id, created_at, updated_at) VALUES ($1, $2, $2)
			ON CONFLICT (growth_plan_id) DO NOTHING`, planID, now)
		if err != nil {
			return errors.Wrap(err, "inserting observation")
		}

		var row observationRow
		err = tx.GetContext(ctx, &row, "SELECT "+observationColumns+" FROM observation WHERE growth_plan_id = $1 FOR UPDATE", planID)
		if err != nil {
			return errors.Wrap(err, "locking observation")
		}
		current := row.toModel()
		staged := current
		if err = mutate(&staged); err != nil {
			return err
		}
		// only the comments and timestamp are writable
		current.HODComment = staged.HODComment
		current.CoordinatorComment = staged.CoordinatorComment
		current.PrinComment = staged.PrinComment
		current.UpdatedAt = staged.UpdatedAt

		_, err = tx.ExecContext(ctx, `
			UPDATE observation SET hod_comment = $1, coordinator_comment = $2, prin_comment = $3, updated_at = $4
			WHERE id = $5`,
			current.HODComment, current.CoordinatorComment, current.PrinComment, current.UpdatedAt, current.ID)
		if err != nil {
			return errors.Wrap(err, "updating observation")
		}
		obs = current
		return nil
	})
	if err != nil {
		return reflection.Observation{}, err
	}
	return obs, nil
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return make([]int64, 0)
	}
	return ids
}
