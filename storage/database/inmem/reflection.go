package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/reflection"
)

type reflectionRepository struct {
	db *DB
}

var _ reflection.Repository = (*reflectionRepository)(nil) // interface compliance check

func NewReflectionRepository(db *DB) *reflectionRepository {
	return &reflectionRepository{db: db}
}

// load assembles a reflection with its children. Callers hold a lock.
func (repo *reflectionRepository) load(row reflectionRow) reflection.Reflection {
	r := reflection.Reflection{
		ID:          row.ID,
		StaffID:     row.StaffID,
		CreatedAt:   row.CreatedAt,
		Domains:     make([]reflection.ReflectionDomain, 0),
		GrowthPlans: make([]reflection.GrowthPlan, 0),
	}
	for _, id := range sortedKeys(repo.db.reflectionDomains) {
		if rd := repo.db.reflectionDomains[id]; rd.ReflectionID == row.ID {
			rd.Strengths = copyIDs(rd.Strengths)
			rd.Growths = copyIDs(rd.Growths)
			rd.DomainName = repo.db.domains[rd.DomainID].Name
			r.Domains = append(r.Domains, rd)
		}
	}
	for _, id := range sortedKeys(repo.db.growthPlans) {
		if gp := repo.db.growthPlans[id]; gp.ReflectionID == row.ID {
			r.GrowthPlans = append(r.GrowthPlans, repo.plan(gp))
		}
	}
	return r
}

// plan attaches the observation and author of gp. Callers hold a lock.
func (repo *reflectionRepository) plan(gp reflection.GrowthPlan) reflection.GrowthPlan {
	gp.ComponentsAddressed = copyIDs(gp.ComponentsAddressed)
	gp.StaffID = repo.db.reflections[gp.ReflectionID].StaffID
	gp.Observation = nil
	if obs, ok := repo.db.observations[gp.ID]; ok {
		gp.Observation = &obs
	}
	return gp
}

func (repo *reflectionRepository) CreateReflection(_ context.Context, r reflection.Reflection) (reflection.Reflection, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// stage every row; nothing is applied unless all inserts succeed
	seq := make(map[string]int64, 3)
	next := func(table string) int64 {
		seq[table]++
		return repo.db.seq[table] + seq[table]
	}

	if err := repo.db.fault(TableReflection); err != nil {
		return reflection.Reflection{}, err
	}
	row := reflectionRow{ID: next(TableReflection), StaffID: r.StaffID, CreatedAt: r.CreatedAt}

	domains := make([]reflection.ReflectionDomain, 0, len(r.Domains))
	seen := make(map[int64]bool, len(r.Domains))
	for _, rd := range r.Domains {
		if err := repo.db.fault(TableReflectionDomain); err != nil {
			return reflection.Reflection{}, err
		}
		if seen[rd.DomainID] || len(intersect(rd.Strengths, rd.Growths)) > 0 {
			return reflection.Reflection{}, core.ErrUniqueViolation
		}
		seen[rd.DomainID] = true
		rd.ID = next(TableReflectionDomain)
		rd.ReflectionID = row.ID
		domains = append(domains, rd)
	}

	plans := make([]reflection.GrowthPlan, 0, len(r.GrowthPlans))
	for _, gp := range r.GrowthPlans {
		if err := repo.db.fault(TableGrowthPlan); err != nil {
			return reflection.Reflection{}, err
		}
		gp.ID = next(TableGrowthPlan)
		gp.ReflectionID = row.ID
		gp.Observation = nil
		plans = append(plans, gp)
	}

	for table, n := range seq {
		repo.db.seq[table] += n
	}
	repo.db.reflections[row.ID] = row
	for _, rd := range domains {
		repo.db.reflectionDomains[rd.ID] = rd
	}
	for _, gp := range plans {
		repo.db.growthPlans[gp.ID] = gp
	}
	return repo.load(row), nil
}

func (repo *reflectionRepository) GetReflection(_ context.Context, id int64) (reflection.Reflection, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	row, ok := repo.db.reflections[id]
	if !ok {
		return reflection.Reflection{}, reflection.ErrNotFound
	}
	return repo.load(row), nil
}

func (repo *reflectionRepository) QueryReflections(_ context.Context, filter reflection.QueryFilter) ([]reflection.Reflection, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	staffIDs := make(map[int64]bool, len(filter.StaffIDs))
	for _, id := range filter.StaffIDs {
		staffIDs[id] = true
	}

	rows := make([]reflectionRow, 0, len(repo.db.reflections))
	for _, row := range repo.db.reflections {
		author := repo.db.staff[row.StaffID]
		if len(staffIDs) > 0 && !staffIDs[row.StaffID] {
			continue
		}
		if filter.DepartmentID != 0 && author.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.ActiveOnly && !author.IsActive {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows)

	refls := make([]reflection.Reflection, 0, len(rows))
	for _, row := range rows {
		refls = append(refls, repo.load(row))
	}
	return refls, nil
}

func (repo *reflectionRepository) UpsertReflectionDomains(_ context.Context, reflectionID int64, domains []reflection.ReflectionDomain) (reflection.Reflection, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.reflections[reflectionID]
	if !ok {
		return reflection.Reflection{}, reflection.ErrNotFound
	}
	existing := make(map[int64]int64) // domain ID -> reflection domain ID
	for id, rd := range repo.db.reflectionDomains {
		if rd.ReflectionID == reflectionID {
			existing[rd.DomainID] = id
		}
	}

	staged := make([]reflection.ReflectionDomain, 0, len(domains))
	var created int64
	for _, rd := range domains {
		if err := repo.db.fault(TableReflectionDomain); err != nil {
			return reflection.Reflection{}, err
		}
		if len(intersect(rd.Strengths, rd.Growths)) > 0 {
			return reflection.Reflection{}, core.ErrUniqueViolation
		}
		rd.ReflectionID = reflectionID
		if id, ok := existing[rd.DomainID]; ok {
			rd.ID = id
		} else {
			created++
			rd.ID = repo.db.seq[TableReflectionDomain] + created
			existing[rd.DomainID] = rd.ID
		}
		staged = append(staged, rd)
	}

	repo.db.seq[TableReflectionDomain] += created
	for _, rd := range staged {
		repo.db.reflectionDomains[rd.ID] = rd
	}
	return repo.load(row), nil
}

func (repo *reflectionRepository) CreateGrowthPlan(_ context.Context, gp reflection.GrowthPlan) (reflection.GrowthPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableGrowthPlan); err != nil {
		return reflection.GrowthPlan{}, err
	}
	if _, ok := repo.db.reflections[gp.ReflectionID]; !ok {
		return reflection.GrowthPlan{}, reflection.ErrNotFound
	}
	gp.ID = repo.db.nextID(TableGrowthPlan)
	gp.Observation = nil
	repo.db.growthPlans[gp.ID] = gp
	return repo.plan(gp), nil
}

func (repo *reflectionRepository) GetGrowthPlan(_ context.Context, id int64) (reflection.GrowthPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if gp, ok := repo.db.growthPlans[id]; ok {
		return repo.plan(gp), nil
	}
	return reflection.GrowthPlan{}, reflection.ErrGrowthPlanNotFound
}

func (repo *reflectionRepository) UpdateGrowthPlan(_ context.Context, gp reflection.GrowthPlan) (reflection.GrowthPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.growthPlans[gp.ID]
	if !ok {
		return reflection.GrowthPlan{}, reflection.ErrGrowthPlanNotFound
	}
	if _, observed := repo.db.observations[gp.ID]; observed {
		return reflection.GrowthPlan{}, reflection.ErrPlanLocked
	}
	if err := repo.db.fault(TableGrowthPlan); err != nil {
		return reflection.GrowthPlan{}, err
	}
	gp.ReflectionID = orig.ReflectionID
	gp.CreatedAt = orig.CreatedAt
	gp.Observation = nil
	repo.db.growthPlans[gp.ID] = gp
	return repo.plan(gp), nil
}

func (repo *reflectionRepository) DeleteGrowthPlan(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.growthPlans[id]; !ok {
		return reflection.ErrGrowthPlanNotFound
	}
	if _, observed := repo.db.observations[id]; observed {
		return reflection.ErrPlanLocked
	}
	delete(repo.db.growthPlans, id)
	return nil
}

func (repo *reflectionRepository) ObserveGrowthPlan(_ context.Context, planID int64, mutate func(obs *reflection.Observation) error) (reflection.Observation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.growthPlans[planID]; !ok {
		return reflection.Observation{}, reflection.ErrGrowthPlanNotFound
	}
	if err := repo.db.fault(TableObservation); err != nil {
		return reflection.Observation{}, err
	}

	obs, exists := repo.db.observations[planID]
	if !exists {
		now := core.Now()
		obs = reflection.Observation{GrowthPlanID: planID, CreatedAt: now, UpdatedAt: now}
	}
	staged := obs
	if err := mutate(&staged); err != nil {
		return reflection.Observation{}, err
	}
	// only the comments and timestamp are writable
	obs.HODComment = staged.HODComment
	obs.CoordinatorComment = staged.CoordinatorComment
	obs.PrinComment = staged.PrinComment
	obs.UpdatedAt = staged.UpdatedAt
	if !exists {
		obs.ID = repo.db.nextID(TableObservation)
	}
	repo.db.observations[planID] = obs
	return obs, nil
}

func sortNewestFirst(rows []reflectionRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
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
