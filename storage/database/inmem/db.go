package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
	"github.com/trezcool/kazi/core/user"
)

type (
	// DB is an in-memory store shared by all in-memory repositories.
	// Multi-row writes are staged and applied at once, so a failed write leaves no rows behind.
	DB struct {
		mu  sync.RWMutex
		seq map[string]int64

		users       map[int64]user.User
		roles       map[int64]staff.Role
		departments map[int64]staff.Department
		staff       map[int64]staff.Staff

		domains     map[int64]catalog.Domain
		components  map[int64]catalog.Component
		years       map[int64]catalog.AcademicYear
		currentYear int64

		reflections       map[int64]reflectionRow
		reflectionDomains map[int64]reflection.ReflectionDomain
		growthPlans       map[int64]reflection.GrowthPlan
		observations      map[int64]reflection.Observation // by growth plan ID

		faults map[string]error
	}

	reflectionRow struct {
		ID        int64
		StaffID   int64
		CreatedAt time.Time
	}
)

// table names, as used by InjectFault
const (
	TableUser             = "app_user"
	TableRole             = "role"
	TableDepartment       = "department"
	TableStaff            = "staff"
	TableDomain           = "domain"
	TableComponent        = "component"
	TableAcademicYear     = "academic_year"
	TableReflection       = "self_reflection"
	TableReflectionDomain = "reflection_domain"
	TableGrowthPlan       = "growth_plan"
	TableObservation      = "observation"
)

func Open() *DB {
	return &DB{
		seq:               make(map[string]int64),
		users:             make(map[int64]user.User),
		roles:             make(map[int64]staff.Role),
		departments:       make(map[int64]staff.Department),
		staff:             make(map[int64]staff.Staff),
		domains:           make(map[int64]catalog.Domain),
		components:        make(map[int64]catalog.Component),
		years:             make(map[int64]catalog.AcademicYear),
		reflections:       make(map[int64]reflectionRow),
		reflectionDomains: make(map[int64]reflection.ReflectionDomain),
		growthPlans:       make(map[int64]reflection.GrowthPlan),
		observations:      make(map[int64]reflection.Observation),
		faults:            make(map[string]error),
	}
}

// InjectFault makes the next write to table fail with err.
func (db *DB) InjectFault(table string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[table] = err
}

// fault returns and clears the pending fault of table. Callers hold the write lock.
func (db *DB) fault(table string) error {
	if err, ok := db.faults[table]; ok {
		delete(db.faults, table)
		return err
	}
	return nil
}

// nextID returns the next primary key of table. Callers hold the write lock.
func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

// Count returns the number of rows in table.
func (db *DB) Count(table string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	switch table {
	case TableUser:
		return len(db.users)
	case TableRole:
		return len(db.roles)
	case TableDepartment:
		return len(db.departments)
	case TableStaff:
		return len(db.staff)
	case TableDomain:
		return len(db.domains)
	case TableComponent:
		return len(db.components)
	case TableAcademicYear:
		return len(db.years)
	case TableReflection:
		return len(db.reflections)
	case TableReflectionDomain:
		return len(db.reflectionDomains)
	case TableGrowthPlan:
		return len(db.growthPlans)
	case TableObservation:
		return len(db.observations)
	}
	return 0
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func copyIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}
