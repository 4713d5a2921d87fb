package inmemdb

import (
	"context"

	"github.com/trezcool/kazi/core/dashboard"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *DB) *dashboardRepository {
	return &dashboardRepository{db: db}
}

// scope returns the active staff and their reflections, newest first. Callers hold a lock.
func (repo *dashboardRepository) scope(filter dashboard.Filter) (map[int64]staff.Staff, []reflectionRow) {
	members := make(map[int64]staff.Staff)
	for id, s := range repo.db.staff {
		if !s.IsActive {
			continue
		}
		if filter.DepartmentID != 0 && s.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.StaffID != 0 && id != filter.StaffID {
			continue
		}
		members[id] = s
	}

	rows := make([]reflectionRow, 0)
	for _, row := range repo.db.reflections {
		if _, ok := members[row.StaffID]; ok {
			rows = append(rows, row)
		}
	}
	sortNewestFirst(rows)
	return members, rows
}

// domainsOf returns the reflection domains of the given reflections. Callers hold a lock.
func (repo *dashboardRepository) domainsOf(rows []reflectionRow) []reflection.ReflectionDomain {
	ids := make(map[int64]bool, len(rows))
	for _, row := range rows {
		ids[row.ID] = true
	}
	var domains []reflection.ReflectionDomain
	for _, id := range sortedKeys(repo.db.reflectionDomains) {
		if rd := repo.db.reflectionDomains[id]; ids[rd.ReflectionID] {
			domains = append(domains, rd)
		}
	}
	return domains
}

// planCounts returns the number of plans and observed plans per reflection. Callers hold a lock.
func (repo *dashboardRepository) planCounts() (map[int64]int, map[int64]int) {
	plans, observed := make(map[int64]int), make(map[int64]int)
	for id, gp := range repo.db.growthPlans {
		plans[gp.ReflectionID]++
		if _, ok := repo.db.observations[id]; ok {
			observed[gp.ReflectionID]++
		}
	}
	return plans, observed
}

func (repo *dashboardRepository) Stats(_ context.Context, filter dashboard.Filter) (dashboard.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members, rows := repo.scope(filter)
	stats := dashboard.Stats{TotalTeachers: len(members), TotalReflections: len(rows)}

	authors := make(map[int64]bool)
	for _, row := range rows {
		authors[row.StaffID] = true
	}
	stats.TeachersWithReflections = len(authors)

	covered := make(map[int64]bool)
	for _, rd := range repo.domainsOf(rows) {
		covered[rd.DomainID] = true
		stats.Strengths += len(rd.Strengths)
		stats.Growths += len(rd.Growths)
	}
	stats.DomainsCovered = len(covered)

	plans, observed := repo.planCounts()
	for _, row := range rows {
		stats.GrowthPlans += plans[row.ID]
		stats.ObservedPlans += observed[row.ID]
	}
	return stats, nil
}

func (repo *dashboardRepository) DomainCounts(_ context.Context, filter dashboard.Filter, kind dashboard.SelectionKind) ([]dashboard.DomainCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, rows := repo.scope(filter)
	totals := make(map[int64]int)
	for _, rd := range repo.domainsOf(rows) {
		if kind == dashboard.Strength {
			totals[rd.DomainID] += len(rd.Strengths)
		} else {
			totals[rd.DomainID] += len(rd.Growths)
		}
	}

	counts := make([]dashboard.DomainCount, 0, len(totals))
	for _, id := range sortedKeys(totals) {
		counts = append(counts, dashboard.DomainCount{
			DomainID:   id,
			DomainName: repo.db.domains[id].Name,
			Total:      totals[id],
		})
	}
	return counts, nil
}

func (repo *dashboardRepository) ComponentCounts(_ context.Context, filter dashboard.Filter, kind dashboard.SelectionKind) ([]dashboard.ComponentCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, rows := repo.scope(filter)
	totals := make(map[int64]int)
	for _, rd := range repo.domainsOf(rows) {
		ids := rd.Growths
		if kind == dashboard.Strength {
			ids = rd.Strengths
		}
		for _, id := range ids {
			totals[id]++
		}
	}

	counts := make([]dashboard.ComponentCount, 0, len(totals))
	for _, id := range sortedKeys(totals) {
		counts = append(counts, dashboard.ComponentCount{
			ComponentID: id,
			Name:        repo.db.components[id].Name,
			Count:       totals[id],
		})
	}
	return counts, nil
}

func (repo *dashboardRepository) RecentReflections(_ context.Context, filter dashboard.Filter, limit int) ([]dashboard.RecentReflection, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members, rows := repo.scope(filter)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	plans, observed := repo.planCounts()

	recent := make([]dashboard.RecentReflection, 0, len(rows))
	for _, row := range rows {
		author := members[row.StaffID]
		recent = append(recent, dashboard.RecentReflection{
			ID:             row.ID,
			StaffID:        row.StaffID,
			StaffName:      author.FullName(),
			DepartmentName: repo.db.departments[author.DepartmentID].Name,
			CreatedAt:      row.CreatedAt,
			GrowthPlans:    plans[row.ID],
			ObservedPlans:  observed[row.ID],
		})
	}
	return recent, nil
}

func (repo *dashboardRepository) ReportRows(_ context.Context, filter dashboard.Filter) ([]dashboard.ReportRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members, rows := repo.scope(filter)
	plans, observed := repo.planCounts()

	report := make([]dashboard.ReportRow, 0, len(rows))
	for _, row := range rows {
		author := members[row.StaffID]
		line := dashboard.ReportRow{
			ReflectionID:   row.ID,
			StaffName:      author.FullName(),
			StaffNo:        author.StaffNo,
			DepartmentName: repo.db.departments[author.DepartmentID].Name,
			CreatedAt:      row.CreatedAt,
			GrowthPlans:    plans[row.ID],
			ObservedPlans:  observed[row.ID],
		}
		for _, rd := range repo.domainsOf([]reflectionRow{row}) {
			line.Domains++
			line.Strengths += len(rd.Strengths)
			line.Growths += len(rd.Growths)
		}
		report = append(report, line)
	}
	return report, nil
}
