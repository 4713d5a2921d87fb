package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

type staffRepository struct {
	db *DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) CreateRole(_ context.Context, role staff.Role) (staff.Role, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableRole); err != nil {
		return staff.Role{}, err
	}
	for _, r := range repo.db.roles {
		if r.Name == role.Name {
			return staff.Role{}, core.ErrUniqueViolation
		}
	}
	role.ID = repo.db.nextID(TableRole)
	repo.db.roles[role.ID] = role
	return role, nil
}

func (repo *staffRepository) GetRole(_ context.Context, id int64) (staff.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if role, ok := repo.db.roles[id]; ok {
		return role, nil
	}
	return staff.Role{}, staff.ErrRoleNotFound
}

func (repo *staffRepository) GetRoleByName(_ context.Context, name string) (staff.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, role := range repo.db.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return staff.Role{}, staff.ErrRoleNotFound
}

func (repo *staffRepository) QueryRoles(_ context.Context) ([]staff.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roles := make([]staff.Role, 0, len(repo.db.roles))
	for _, id := range sortedKeys(repo.db.roles) {
		roles = append(roles, repo.db.roles[id])
	}
	return roles, nil
}

func (repo *staffRepository) CreateDepartment(_ context.Context, dept staff.Department) (staff.Department, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableDepartment); err != nil {
		return staff.Department{}, err
	}
	for _, d := range repo.db.departments {
		if d.Name == dept.Name {
			return staff.Department{}, core.ErrUniqueViolation
		}
	}
	dept.ID = repo.db.nextID(TableDepartment)
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *staffRepository) GetDepartment(_ context.Context, id int64) (staff.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if dept, ok := repo.db.departments[id]; ok {
		return dept, nil
	}
	return staff.Department{}, staff.ErrDepartmentNotFound
}

func (repo *staffRepository) GetDepartmentByName(_ context.Context, name string) (staff.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, dept := range repo.db.departments {
		if dept.Name == name {
			return dept, nil
		}
	}
	return staff.Department{}, staff.ErrDepartmentNotFound
}

func (repo *staffRepository) QueryDepartments(_ context.Context) ([]staff.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	depts := make([]staff.Department, 0, len(repo.db.departments))
	for _, id := range sortedKeys(repo.db.departments) {
		depts = append(depts, repo.db.departments[id])
	}
	return depts, nil
}

// withNames fills the joined role and department names. Callers hold a lock.
func (repo *staffRepository) withNames(s staff.Staff) staff.Staff {
	s.RoleName = ""
	if s.RoleID.Valid {
		s.RoleName = repo.db.roles[s.RoleID.Int64].Name
	}
	s.DepartmentName = repo.db.departments[s.DepartmentID].Name
	return s
}

func (repo *staffRepository) CreateStaff(_ context.Context, s staff.Staff) (staff.Staff, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(TableStaff); err != nil {
		return staff.Staff{}, err
	}
	for _, other := range repo.db.staff {
		if other.UserID == s.UserID || other.StaffNo == s.StaffNo {
			return staff.Staff{}, core.ErrUniqueViolation
		}
	}
	s.ID = repo.db.nextID(TableStaff)
	s.RoleName, s.DepartmentName = "", ""
	repo.db.staff[s.ID] = s
	return repo.withNames(s), nil
}

func (repo *staffRepository) GetStaff(_ context.Context, id int64) (staff.Staff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.staff[id]; ok {
		return repo.withNames(s), nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) find(match func(staff.Staff) bool) (staff.Staff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.staff {
		if match(s) {
			return repo.withNames(s), nil
		}
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) GetStaffByUser(_ context.Context, userID int64) (staff.Staff, error) {
	return repo.find(func(s staff.Staff) bool { return s.UserID == userID })
}

func (repo *staffRepository) GetStaffByNo(_ context.Context, staffNo string) (staff.Staff, error) {
	return repo.find(func(s staff.Staff) bool { return s.StaffNo == staffNo })
}

func (repo *staffRepository) QueryStaff(_ context.Context, filter *staff.QueryFilter) ([]staff.Staff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]staff.Staff, 0, len(repo.db.staff))
	for _, s := range repo.db.staff {
		if filter != nil {
			if filter.DepartmentID != 0 && s.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.RoleID != 0 && s.RoleID.Int64 != filter.RoleID {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(s.FullName()+" "+s.StaffNo), strings.ToLower(filter.Search)) {
				continue
			}
		}
		members = append(members, repo.withNames(s))
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].FirstName != members[j].FirstName {
			return members[i].FirstName < members[j].FirstName
		}
		if members[i].LastName != members[j].LastName {
			return members[i].LastName < members[j].LastName
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (repo *staffRepository) UpdateStaff(_ context.Context, s staff.Staff) (staff.Staff, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.staff[s.ID]
	if !ok {
		return staff.Staff{}, staff.ErrNotFound
	}
	s.UserID = orig.UserID
	s.StaffNo = orig.StaffNo
	s.CreatedAt = orig.CreatedAt
	s.RoleName, s.DepartmentName = "", ""
	repo.db.staff[s.ID] = s
	return repo.withNames(s), nil
}
