package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/dashboard"
)

// scopeCTE selects the active members in scope and their reflections.
// $1 is the department (0 for all) and $2 the staff member (0 for all).
const scopeCTE = `
	WITH members AS (
		SELECT id FROM staff
		WHERE is_active AND ($1::BIGINT = 0 OR department_id = $1) AND ($2::BIGINT = 0 OR id = $2)
	), refls AS (
		SELECT r.id, r.staff_id, r.created_at FROM self_reflection r JOIN members m ON m.id = r.staff_id
	)`

type (
	statsRow struct {
		TotalTeachers           int `db:"total_teachers"`
		TeachersWithReflections int `db:"teachers_with_reflections"`
		TotalReflections        int `db:"total_reflections"`
		DomainsCovered          int `db:"domains_covered"`
		Strengths               int `db:"strengths"`
		Growths                 int `db:"growths"`
		GrowthPlans             int `db:"growth_plans"`
		ObservedPlans           int `db:"observed_plans"`
	}

	domainCountRow struct {
		DomainID   int64  `db:"domain_id"`
		DomainName string `db:"domain_name"`
		Total      int    `db:"total"`
	}

	componentCountRow struct {
		ComponentID int64  `db:"component_id"`
		Name        string `db:"name"`
		Count       int    `db:"count"`
	}

	reportRow struct {
		ID             int64     `db:"id"`
		StaffID        int64     `db:"staff_id"`
		StaffName      string    `db:"staff_name"`
		StaffNo        string    `db:"staff_no"`
		DepartmentName string    `db:"department_name"`
		CreatedAt      time.Time `db:"created_at"`
		Domains        int       `db:"domains"`
		Strengths      int       `db:"strengths"`
		Growths        int       `db:"growths"`
		GrowthPlans    int       `db:"growth_plans"`
		ObservedPlans  int       `db:"observed_plans"`
	}
)

type dashboardRepository struct {
	db core.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db core.DB) *dashboardRepository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) Stats(ctx context.Context, filter dashboard.Filter) (dashboard.Stats, error) {
	var row statsRow
	err := repo.db.GetContext(ctx, &row, scopeCTE+`
		SELECT
			(SELECT COUNT(*) FROM members) AS total_teachers,
			(SELECT COUNT(DISTINCT staff_id) FROM refls) AS teachers_with_reflections,
			(SELECT COUNT(*) FROM refls) AS total_reflections,
			(SELECT COUNT(DISTINCT rd.domain_id) FROM reflection_domain rd
				JOIN refls ON refls.id = rd.reflection_id) AS domains_covered,
			(SELECT COUNT(*) FROM reflection_domain_component rdc
				JOIN reflection_domain rd ON rd.id = rdc.reflection_domain_id
				JOIN refls ON refls.id = rd.reflection_id
				WHERE rdc.kind = 'strength') AS strengths,
			(SELECT COUNT(*) FROM reflection_domain_component rdc
				JOIN reflection_domain rd ON rd.id = rdc.reflection_domain_id
				JOIN refls ON refls.id = rd.reflection_id
				WHERE rdc.kind = 'growth') AS growths,
			(SELECT COUNT(*) FROM growth_plan gp
				JOIN refls ON refls.id = gp.reflection_id) AS growth_plans,
			(SELECT COUNT(*) FROM growth_plan gp
				JOIN refls ON refls.id = gp.reflection_id
				JOIN observation o ON o.growth_plan_id = gp.id) AS observed_plans`,
		filter.DepartmentID, filter.StaffID,
	)
	if err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "querying dashboard stats")
	}
	return dashboard.Stats(row), nil
}

func (repo *dashboardRepository) DomainCounts(ctx context.Context, filter dashboard.Filter, kind dashboard.SelectionKind) ([]dashboard.DomainCount, error) {
	var rows []domainCountRow
	err := repo.db.SelectContext(ctx, &rows, scopeCTE+`
		SELECT d.id AS domain_id, d.name AS domain_name, COUNT(rdc.component_id) AS total
		FROM reflection_domain rd
		JOIN refls ON refls.id = rd.reflection_id
		JOIN domain d ON d.id = rd.domain_id
		LEFT JOIN reflection_domain_component rdc ON rdc.reflection_domain_id = rd.id AND rdc.kind = $3
		GROUP BY d.id, d.name
		ORDER BY d.id`,
		filter.DepartmentID, filter.StaffID, string(kind),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying domain counts")
	}
	counts := make([]dashboard.DomainCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, dashboard.DomainCount(r))
	}
	return counts, nil
}

func (repo *dashboardRepository) ComponentCounts(ctx context.Context, filter dashboard.Filter, kind dashboard.SelectionKind) ([]dashboard.ComponentCount, error) {
	var rows []componentCountRow
	err := repo.db.SelectContext(ctx, &rows, scopeCTE+`
		SELECT c.id AS component_id, c.name, COUNT(*) AS count
		FROM reflection_domain_component rdc
		JOIN reflection_domain rd ON rd.id = rdc.reflection_domain_id
		JOIN refls ON refls.id = rd.reflection_id
		JOIN component c ON c.id = rdc.component_id
		WHERE rdc.kind = $3
		GROUP BY c.id, c.name
		ORDER BY c.id`,
		filter.DepartmentID, filter.StaffID, string(kind),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying component counts")
	}
	counts := make([]dashboard.ComponentCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, dashboard.ComponentCount(r))
	}
	return counts, nil
}

// reportQuery lists the reflections in scope, newest first, with their per-reflection counts.
const reportQuery = scopeCTE + `
	SELECT
		r.id, r.staff_id, r.created_at, s.staff_no, d.name AS department_name,
		CONCAT_WS(' ', s.first_name, NULLIF(s.middle_name, ''), s.last_name) AS staff_name,
		(SELECT COUNT(*) FROM reflection_domain rd WHERE rd.reflection_id = r.id) AS domains,
		(SELECT COUNT(*) FROM reflection_domain_component rdc
			JOIN reflection_domain rd ON rd.id = rdc.reflection_domain_id
			WHERE rd.reflection_id = r.id AND rdc.kind = 'strength') AS strengths,
		(SELECT COUNT(*) FROM reflection_domain_component rdc
			JOIN reflection_domain rd ON rd.id = rdc.reflection_domain_id
			WHERE rd.reflection_id = r.id AND rdc.kind = 'growth') AS growths,
		(SELECT COUNT(*) FROM growth_plan gp WHERE gp.reflection_id = r.id) AS growth_plans,
		(SELECT COUNT(*) FROM growth_plan gp
			JOIN observation o ON o.growth_plan_id = gp.id
			WHERE gp.reflection_id = r.id) AS observed_plans
	FROM refls r
	JOIN staff s ON s.id = r.staff_id
	JOIN department d ON d.id = s.department_id
	ORDER BY r.created_at DESC, r.id DESC`

func (repo *dashboardRepository) reportRows(ctx context.Context, filter dashboard.Filter, limit int) ([]reportRow, error) {
	query, args := reportQuery, []interface{}{filter.DepartmentID, filter.StaffID}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	var rows []reportRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying reflections in scope")
	}
	return rows, nil
}

func (repo *dashboardRepository) RecentReflections(ctx context.Context, filter dashboard.Filter, limit int) ([]dashboard.RecentReflection, error) {
	rows, err := repo.reportRows(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	recent := make([]dashboard.RecentReflection, 0, len(rows))
	for _, r := range rows {
		recent = append(recent, dashboard.RecentReflection{
			ID:             r.ID,
			StaffID:        r.StaffID,
			StaffName:      r.StaffName,
			DepartmentName: r.DepartmentName,
			CreatedAt:      r.CreatedAt.UTC(),
			GrowthPlans:    r.GrowthPlans,
			ObservedPlans:  r.ObservedPlans,
		})
	}
	return recent, nil
}

func (repo *dashboardRepository) ReportRows(ctx context.Context, filter dashboard.Filter) ([]dashboard.ReportRow, error) {
	rows, err := repo.reportRows(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	report := make([]dashboard.ReportRow, 0, len(rows))
	for _, r := range rows {
		report = append(report, dashboard.ReportRow{
			ReflectionID:   r.ID,
			StaffName:      r.StaffName,
			StaffNo:        r.StaffNo,
			DepartmentName: r.DepartmentName,
			CreatedAt:      r.CreatedAt.UTC(),
			Domains:        r.Domains,
			Strengths:      r.Strengths,
			Growths:        r.Growths,
			GrowthPlans:    r.GrowthPlans,
			ObservedPlans:  r.ObservedPlans,
		})
	}
	return report, nil
}
