package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// withComponents attaches the domain's components in ID order. Callers hold a lock.
func (repo *catalogRepository) withComponents(d catalog.Domain) catalog.Domain {
	d.Components = make([]catalog.Component, 0)
	for _, id := range sortedKeys(repo.db.components) {
		if c := repo.db.components[id]; c.DomainID == d.ID {
			d.Components = append(d.Components, c)
		}
	}
	return d
}

func (repo *catalogRepository) CreateDomain(_ context.Context, d catalog.Domain) (catalog.Domain, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableDomain); err != nil {
		return catalog.Domain{}, err
	}
	d.ID = repo.db.nextID(TableDomain)
	d.Components = nil
	repo.db.domains[d.ID] = d
	return repo.withComponents(d), nil
}

func (repo *catalogRepository) GetDomain(_ context.Context, id int64) (catalog.Domain, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if d, ok := repo.db.domains[id]; ok {
		return repo.withComponents(d), nil
	}
	return catalog.Domain{}, catalog.ErrDomainNotFound
}

func (repo *catalogRepository) QueryDomains(_ context.Context, filter catalog.DomainFilter) ([]catalog.Domain, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	domains := make([]catalog.Domain, 0, len(repo.db.domains))
	for _, id := range sortedKeys(repo.db.domains) {
		d := repo.db.domains[id]
		if filter.RoleID != 0 && d.RoleID.Int64 != filter.RoleID {
			continue
		}
		if filter.NoRole && d.RoleID.Valid {
			continue
		}
		if filter.WithChildren {
			d = repo.withComponents(d)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// DeleteDomain removes the domain, its components and the selections referencing them.
func (repo *catalogRepository) DeleteDomain(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableDomain); err != nil {
		return err
	}
	removed := make(map[int64]bool)
	for cid, c := range repo.db.components {
		if c.DomainID == id {
			removed[cid] = true
			delete(repo.db.components, cid)
		}
	}
	for rdID, rd := range repo.db.reflectionDomains {
		if rd.DomainID == id {
			delete(repo.db.reflectionDomains, rdID)
		}
	}
	for gpID, gp := range repo.db.growthPlans {
		gp.ComponentsAddressed = without(gp.ComponentsAddressed, removed)
		repo.db.growthPlans[gpID] = gp
	}
	delete(repo.db.domains, id)
	return nil
}

func (repo *catalogRepository) CreateComponent(_ context.Context, c catalog.Component) (catalog.Component, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableComponent); err != nil {
		return catalog.Component{}, err
	}
	if _, ok := repo.db.domains[c.DomainID]; !ok {
		return catalog.Component{}, catalog.ErrDomainNotFound
	}
	c.ID = repo.db.nextID(TableComponent)
	repo.db.components[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) GetComponents(_ context.Context, ids ...int64) ([]catalog.Component, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comps := make([]catalog.Component, 0, len(ids))
	for _, id := range ids {
		if c, ok := repo.db.components[id]; ok {
			comps = append(comps, c)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].ID < comps[j].ID })
	return comps, nil
}

func (repo *catalogRepository) CreateAcademicYear(_ context.Context, ay catalog.AcademicYear) (catalog.AcademicYear, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableAcademicYear); err != nil {
		return catalog.AcademicYear{}, err
	}
	for _, y := range repo.db.years {
		if y.StartYear == ay.StartYear && y.EndYear == ay.EndYear {
			return catalog.AcademicYear{}, core.ErrUniqueViolation
		}
	}
	ay.ID = repo.db.nextID(TableAcademicYear)
	ay.IsCurrent = false
	repo.db.years[ay.ID] = ay
	return ay, nil
}

func (repo *catalogRepository) year(ay catalog.AcademicYear) catalog.AcademicYear {
	ay.IsCurrent = ay.ID == repo.db.currentYear
	return ay
}

func (repo *catalogRepository) GetAcademicYear(_ context.Context, id int64) (catalog.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ay, ok := repo.db.years[id]; ok {
		return repo.year(ay), nil
	}
	return catalog.AcademicYear{}, catalog.ErrAcademicYearNotFound
}

func (repo *catalogRepository) GetAcademicYearByRange(_ context.Context, start, end int) (catalog.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ay := range repo.db.years {
		if ay.StartYear == start && ay.EndYear == end {
			return repo.year(ay), nil
		}
	}
	return catalog.AcademicYear{}, catalog.ErrAcademicYearNotFound
}

// QueryAcademicYears returns the years, latest first.
func (repo *catalogRepository) QueryAcademicYears(_ context.Context) ([]catalog.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	years := make([]catalog.AcademicYear, 0, len(repo.db.years))
	for _, ay := range repo.db.years {
		years = append(years, repo.year(ay))
	}
	sort.Slice(years, func(i, j int) bool {
		if years[i].StartYear != years[j].StartYear {
			return years[i].StartYear > years[j].StartYear
		}
		return years[i].ID > years[j].ID
	})
	return years, nil
}

func (repo *catalogRepository) SetCurrentAcademicYear(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.years[id]; !ok {
		return catalog.ErrAcademicYearNotFound
	}
	repo.db.currentYear = id
	return nil
}

func (repo *catalogRepository) GetCurrentAcademicYear(_ context.Context) (catalog.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ay, ok := repo.db.years[repo.db.currentYear]; ok {
		return repo.year(ay), nil
	}
	return catalog.AcademicYear{}, catalog.ErrNoCurrentYear
}

func without(ids []int64, removed map[int64]bool) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !removed[id] {
			out = append(out, id)
		}
	}
	return out
}
