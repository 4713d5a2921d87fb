package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
)

type domainRow struct {
	ID     int64      `db:"id"`
	Name   string     `db:"name"`
	RoleID null.Int64 `db:"role_id"`
}

type componentRow struct {
	ID       int64  `db:"id"`
	DomainID int64  `db:"domain_id"`
	Name     string `db:"name"`
}

func (r componentRow) toModel() catalog.Component {
	return catalog.Component{ID: r.ID, DomainID: r.DomainID, Name: r.Name}
}

type yearRow struct {
	ID        int64 `db:"id"`
	StartYear int   `db:"start_year"`
	EndYear   int   `db:"end_year"`
	IsCurrent bool  `db:"is_current"`
}

func (r yearRow) toModel() catalog.AcademicYear {
	return catalog.AcademicYear{ID: r.ID, StartYear: r.StartYear, EndYear: r.EndYear, IsCurrent: r.IsCurrent}
}

func selectYears() sq.SelectBuilder {
	return psql.Select("ay.id", "ay.start_year", "ay.end_year", "(c.academic_year_id IS NOT NULL) AS is_current").
		From("academic_year ay").
		LeftJoin("current_academic_year c ON c.academic_year_id = ay.id")
}

type catalogRepository struct {
	db core.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db core.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateDomain(ctx context.Context, d catalog.Domain) (catalog.Domain, error) {
	err := repo.db.GetContext(ctx, &d.ID, "INSERT INTO domain (name, role_id) VALUES ($1, $2) RETURNING id", d.Name, d.RoleID)
	if err != nil {
		return catalog.Domain{}, trapErr(err, nil, "inserting domain")
	}
	d.Components = nil
	return d, nil
}

// components loads the components of the given domains, keyed by domain.
func (repo *catalogRepository) components(ctx context.Context, domainIDs []int64) (map[int64][]catalog.Component, error) {
	byDomain := make(map[int64][]catalog.Component, len(domainIDs))
	if len(domainIDs) == 0 {
		return byDomain, nil
	}
	var rows []componentRow
	b := psql.Select("id", "domain_id", "name").From("component").Where(sq.Eq{"domain_id": domainIDs}).OrderBy("id")
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying components")
	}
	for _, r := range rows {
		byDomain[r.DomainID] = append(byDomain[r.DomainID], r.toModel())
	}
	return byDomain, nil
}

func (repo *catalogRepository) GetDomain(ctx context.Context, id int64) (catalog.Domain, error) {
	var row domainRow
	if err := repo.db.GetContext(ctx, &row, "SELECT id, name, role_id FROM domain WHERE id = $1", id); err != nil {
		return catalog.Domain{}, trapErr(err, catalog.ErrDomainNotFound, "getting domain")
	}
	comps, err := repo.components(ctx, []int64{id})
	if err != nil {
		return catalog.Domain{}, err
	}
	return catalog.Domain{ID: row.ID, Name: row.Name, RoleID: row.RoleID, Components: comps[id]}, nil
}

func (repo *catalogRepository) QueryDomains(ctx context.Context, filter catalog.DomainFilter) ([]catalog.Domain, error) {
	b := psql.Select("id", "name", "role_id").From("domain").OrderBy("id")
	if filter.RoleID != 0 {
		b = b.Where(sq.Eq{"role_id": filter.RoleID})
	}
	if filter.NoRole {
		b = b.Where(sq.Eq{"role_id": nil})
	}

	var rows []domainRow
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying domains")
	}

	comps := map[int64][]catalog.Component{}
	if filter.WithChildren {
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		var err error
		if comps, err = repo.components(ctx, ids); err != nil {
			return nil, err
		}
	}

	domains := make([]catalog.Domain, 0, len(rows))
	for _, r := range rows {
		domains = append(domains, catalog.Domain{ID: r.ID, Name: r.Name, RoleID: r.RoleID, Components: comps[r.ID]})
	}
	return domains, nil
}

// DeleteDomain removes the domain; components and selections go with it through ON DELETE CASCADE.
func (repo *catalogRepository) DeleteDomain(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM domain WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting domain")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrDomainNotFound
	}
	return nil
}

func (repo *catalogRepository) CreateComponent(ctx context.Context, c catalog.Component) (catalog.Component, error) {
	err := repo.db.GetContext(ctx, &c.ID,
		"INSERT INTO component (domain_id, name) VALUES ($1, $2) RETURNING id", c.DomainID, c.Name)
	if err != nil {
		return catalog.Component{}, trapErr(err, nil, "inserting component")
	}
	return c, nil
}

func (repo *catalogRepository) GetComponents(ctx context.Context, ids ...int64) ([]catalog.Component, error) {
	comps := make([]catalog.Component, 0, len(ids))
	if len(ids) == 0 {
		return comps, nil
	}
	var rows []componentRow
	b := psql.Select("id", "domain_id", "name").From("component").Where(sq.Eq{"id": ids}).OrderBy("id")
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "getting components")
	}
	for _, r := range rows {
		comps = append(comps, r.toModel())
	}
	return comps, nil
}

func (repo *catalogRepository) CreateAcademicYear(ctx context.Context, ay catalog.AcademicYear) (catalog.AcademicYear, error) {
	err := repo.db.GetContext(ctx, &ay.ID,
		"INSERT INTO academic_year (start_year, end_year) VALUES ($1, $2) RETURNING id", ay.StartYear, ay.EndYear)
	if err != nil {
		return catalog.AcademicYear{}, trapErr(err, nil, "inserting academic year")
	}
	ay.IsCurrent = false
	return ay, nil
}

func (repo *catalogRepository) getYear(ctx context.Context, pred sq.Eq) (catalog.AcademicYear, error) {
	var row yearRow
	if err := getBuilt(ctx, repo.db, &row, selectYears().Where(pred)); err != nil {
		return catalog.AcademicYear{}, trapErr(err, catalog.ErrAcademicYearNotFound, "getting academic year")
	}
	return row.toModel(), nil
}

func (repo *catalogRepository) GetAcademicYear(ctx context.Context, id int64) (catalog.AcademicYear, error) {
	return repo.getYear(ctx, sq.Eq{"ay.id": id})
}

func (repo *catalogRepository) GetAcademicYearByRange(ctx context.Context, start, end int) (catalog.AcademicYear, error) {
	return repo.getYear(ctx, sq.Eq{"ay.start_year": start, "ay.end_year": end})
}

func (repo *catalogRepository) QueryAcademicYears(ctx context.Context) ([]catalog.AcademicYear, error) {
	var rows []yearRow
	if err := selectBuilt(ctx, repo.db, &rows, selectYears().OrderBy("ay.start_year DESC", "ay.id DESC")); err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	years := make([]catalog.AcademicYear, 0, len(rows))
	for _, r := range rows {
		years = append(years, r.toModel())
	}
	return years, nil
}

func (repo *catalogRepository) SetCurrentAcademicYear(ctx context.Context, id int64) error {
	found, err := exists(ctx, repo.db, "academic_year", id)
	if err != nil {
		return errors.Wrap(err, "checking academic year")
	}
	if !found {
		return catalog.ErrAcademicYearNotFound
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO current_academic_year (id, academic_year_id) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET academic_year_id = EXCLUDED.academic_year_id`, id)
	return errors.Wrap(err, "setting current academic year")
}

func (repo *catalogRepository) GetCurrentAcademicYear(ctx context.Context) (catalog.AcademicYear, error) {
	var row yearRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT ay.id, ay.start_year, ay.end_year, TRUE AS is_current
		FROM current_academic_year c
		JOIN academic_year ay ON ay.id = c.academic_year_id`)
	if err != nil {
		return catalog.AcademicYear{}, trapErr(err, catalog.ErrNoCurrentYear, "getting current academic year")
	}
	return row.toModel(), nil
}
