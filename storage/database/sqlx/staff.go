package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

type staffRow struct {
	ID             int64       `db:"id"`
	UserID         int64       `db:"user_id"`
	FirstName      string      `db:"first_name"`
	MiddleName     null.String `db:"middle_name"`
	LastName       string      `db:"last_name"`
	StaffNo        string      `db:"staff_no"`
	RoleID         null.Int64  `db:"role_id"`
	DepartmentID   int64       `db:"department_id"`
	IsActive       bool        `db:"is_active"`
	IsHOD          bool        `db:"is_hod"`
	IsCoordinator  bool        `db:"is_coordinator"`
	IsPrincipal    bool        `db:"is_principal"`
	CreatedAt      time.Time   `db:"created_at"`
	RoleName       null.String `db:"role_name"`
	DepartmentName string      `db:"department_name"`
}

func (r staffRow) toModel() staff.Staff {
	return staff.Staff{
		ID:             r.ID,
		UserID:         r.UserID,
		FirstName:      r.FirstName,
		MiddleName:     r.MiddleName.String,
		LastName:       r.LastName,
		StaffNo:        r.StaffNo,
		RoleID:         r.RoleID,
		DepartmentID:   r.DepartmentID,
		IsActive:       r.IsActive,
		IsHOD:          r.IsHOD,
		IsCoordinator:  r.IsCoordinator,
		IsPrincipal:    r.IsPrincipal,
		CreatedAt:      r.CreatedAt.UTC(),
		RoleName:       r.RoleName.String,
		DepartmentName: r.DepartmentName,
	}
}

type staffRepository struct {
	db core.DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db core.DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) CreateRole(ctx context.Context, role staff.Role) (staff.Role, error) {
	err := repo.db.GetContext(ctx, &role.ID, "INSERT INTO role (name) VALUES ($1) RETURNING id", role.Name)
	if err != nil {
		return staff.Role{}, trapErr(err, nil, "inserting role")
	}
	return role, nil
}

func (repo *staffRepository) GetRole(ctx context.Context, id int64) (staff.Role, error) {
	var role staff.Role
	err := repo.db.GetContext(ctx, &role, "SELECT id, name FROM role WHERE id = $1", id)
	return role, trapErr(err, staff.ErrRoleNotFound, "getting role")
}

func (repo *staffRepository) GetRoleByName(ctx context.Context, name string) (staff.Role, error) {
	var role staff.Role
	err := repo.db.GetContext(ctx, &role, "SELECT id, name FROM role WHERE name = $1", name)
	return role, trapErr(err, staff.ErrRoleNotFound, "getting role")
}

func (repo *staffRepository) QueryRoles(ctx context.Context) ([]staff.Role, error) {
	roles := make([]staff.Role, 0)
	if err := repo.db.SelectContext(ctx, &roles, "SELECT id, name FROM role ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	return roles, nil
}

func (repo *staffRepository) CreateDepartment(ctx context.Context, dept staff.Department) (staff.Department, error) {
	err := repo.db.GetContext(ctx, &dept.ID, "INSERT INTO department (name) VALUES ($1) RETURNING id", dept.Name)
	if err != nil {
		return staff.Department{}, trapErr(err, nil, "inserting department")
	}
	return dept, nil
}

func (repo *staffRepository) GetDepartment(ctx context.Context, id int64) (staff.Department, error) {
	var dept staff.Department
	err := repo.db.GetContext(ctx, &dept, "SELECT id, name FROM department WHERE id = $1", id)
	return dept, trapErr(err, staff.ErrDepartmentNotFound, "getting department")
}

func (repo *staffRepository) GetDepartmentByName(ctx context.Context, name string) (staff.Department, error) {
	var dept staff.Department
	err := repo.db.GetContext(ctx, &dept, "SELECT id, name FROM department WHERE name = $1", name)
	return dept, trapErr(err, staff.ErrDepartmentNotFound, "getting department")
}

func (repo *staffRepository) QueryDepartments(ctx context.Context) ([]staff.Department, error) {
	depts := make([]staff.Department, 0)
	if err := repo.db.SelectContext(ctx, &depts, "SELECT id, name FROM department ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	return depts, nil
}

// selectStaff joins the role and department names onto staff rows.
func selectStaff() sq.SelectBuilder {
	return psql.Select(
		"s.id", "s.user_id", "s.first_name", "s.middle_name", "s.last_name", "s.staff_no", "s.role_id",
		"s.department_id", "s.is_active", "s.is_hod", "s.is_coordinator", "s.is_principal", "s.created_at",
		"r.name AS role_name", "d.name AS department_name",
	).
		From("staff s").
		LeftJoin("role r ON r.id = s.role_id").
		Join("department d ON d.id = s.department_id")
}

func (repo *staffRepository) getStaff(ctx context.Context, pred sq.Eq) (staff.Staff, error) {
	var row staffRow
	if err := getBuilt(ctx, repo.db, &row, selectStaff().Where(pred)); err != nil {
		return staff.Staff{}, trapErr(err, staff.ErrNotFound, "getting staff")
	}
	return row.toModel(), nil
}

func (repo *staffRepository) CreateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	var id int64
	err := repo.db.GetContext(ctx, &id, `
		INSERT INTO staff (user_id, first_name, middle_name, last_name, staff_no, role_id, department_id,
			is_active, is_hod, is_coordinator, is_principal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		s.UserID, s.FirstName, null.NewString(s.MiddleName, s.MiddleName != ""), s.LastName, s.StaffNo, s.RoleID,
		s.DepartmentID, s.IsActive, s.IsHOD, s.IsCoordinator, s.IsPrincipal, s.CreatedAt,
	)
	if err != nil {
		return staff.Staff{}, trapErr(err, nil, "inserting staff")
	}
	return repo.GetStaff(ctx, id)
}

func (repo *staffRepository) GetStaff(ctx context.Context, id int64) (staff.Staff, error) {
	return repo.getStaff(ctx, sq.Eq{"s.id": id})
}

func (repo *staffRepository) GetStaffByUser(ctx context.Context, userID int64) (staff.Staff, error) {
	return repo.getStaff(ctx, sq.Eq{"s.user_id": userID})
}

func (repo *staffRepository) GetStaffByNo(ctx context.Context, staffNo string) (staff.Staff, error) {
	return repo.getStaff(ctx, sq.Eq{"s.staff_no": staffNo})
}

func (repo *staffRepository) QueryStaff(ctx context.Context, filter *staff.QueryFilter) ([]staff.Staff, error) {
	b := selectStaff().OrderBy("s.first_name", "s.last_name", "s.id")
	if filter != nil {
		if filter.DepartmentID != 0 {
			b = b.Where(sq.Eq{"s.department_id": filter.DepartmentID})
		}
		if filter.RoleID != 0 {
			b = b.Where(sq.Eq{"s.role_id": filter.RoleID})
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"s.is_active": *filter.IsActive})
		}
		if filter.Search != "" {
			b = b.Where(
				"CONCAT_WS(' ', s.first_name, s.middle_name, s.last_name, s.staff_no) ILIKE ?",
				"%"+filter.Search+"%",
			)
		}
	}

	var rows []staffRow
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying staff")
	}
	members := make([]staff.Staff, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toModel())
	}
	return members, nil
}

func (repo *staffRepository) UpdateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	res, err := execBuilt(ctx, repo.db, psql.Update("staff").
		Set("first_name", s.FirstName).
		Set("middle_name", null.NewString(s.MiddleName, s.MiddleName != "")).
		Set("last_name", s.LastName).
		Set("role_id", s.RoleID).
		Set("department_id", s.DepartmentID).
		Set("is_active", s.IsActive).
		Set("is_hod", s.IsHOD).
		Set("is_coordinator", s.IsCoordinator).
		Set("is_principal", s.IsPrincipal).
		Where(sq.Eq{"id": s.ID}),
	)
	if err != nil {
		return staff.Staff{}, trapErr(err, nil, "updating staff")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return staff.Staff{}, staff.ErrNotFound
	}
	return repo.GetStaff(ctx, s.ID)
}
