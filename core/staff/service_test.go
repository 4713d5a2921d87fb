package staff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
	testutil "github.com/trezcool/kazi/tests"
)

func TestService_Onboard(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.StaffSvc
	dept := testutil.CreateDepartment(t, env, "Sciences")
	usr := testutil.CreateUser(t, env, "Jane Doe", "jane@school.test", "", false)

	valid := func() staff.NewStaff {
		return staff.NewStaff{UserID: usr.ID, FirstName: " Jane ", LastName: "Doe", StaffNo: "T001", DepartmentID: dept.ID}
	}
	fieldsOf := func(err error) []string {
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want ValidationError, got %v", err)
		names := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			names = append(names, f.Field)
		}
		return names
	}

	ns := valid()
	ns.UserID, ns.RoleID, ns.DepartmentID = 42, 7, 9
	err := ns.Validate(ctx, env.Validate, svc)
	assert.Equal(t, []string{"user_id", "role_id", "department_id"}, fieldsOf(err))

	ns = valid()
	require.NoError(t, ns.Validate(ctx, env.Validate, svc))
	assert.Equal(t, "Jane", ns.FirstName)
	s, err := svc.Onboard(ctx, ns)
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.False(t, s.RoleID.Valid)
	assert.Equal(t, "Jane Doe", s.FullName())

	got, err := svc.GetByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	other := testutil.CreateUser(t, env, "John Doe", "john@school.test", "", false)
	ns = valid()
	err = ns.Validate(ctx, env.Validate, svc)
	assert.Equal(t, []string{"user_id", "staff_no"}, fieldsOf(err))
	ns.UserID = other.ID
	err = ns.Validate(ctx, env.Validate, svc)
	assert.Equal(t, []string{"staff_no"}, fieldsOf(err))

	_, err = svc.GetByUser(ctx, other.ID)
	assert.Equal(t, staff.ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.StaffSvc
	role := testutil.CreateRole(t, env, "Teacher")
	sciences := testutil.CreateDepartment(t, env, "Sciences")
	arts := testutil.CreateDepartment(t, env, "Arts")
	s := testutil.CreateStaff(t, env, "Tina", "Teach", sciences, testutil.StaffOpts{RoleID: role.ID})

	unknown := int64(42)
	_, err := svc.Update(ctx, s.ID, staff.UpdateStaff{DepartmentID: &unknown})
	assert.True(t, core.IsValidation(err))
	_, err = svc.Update(ctx, s.ID, staff.UpdateStaff{RoleID: &unknown})
	assert.True(t, core.IsValidation(err))
	_, err = svc.Update(ctx, 42, staff.UpdateStaff{})
	assert.Equal(t, staff.ErrNotFound, err)

	yes, noRole := true, int64(0)
	got, err := svc.Update(ctx, s.ID, staff.UpdateStaff{DepartmentID: &arts.ID, IsHOD: &yes, RoleID: &noRole})
	require.NoError(t, err)
	assert.Equal(t, arts.ID, got.DepartmentID)
	assert.True(t, got.IsHOD)
	assert.False(t, got.RoleID.Valid)
	assert.Equal(t, staff.ScopeDepartment, staff.CapabilitiesOf(&got).Scope())
}

func TestService_Members(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.StaffSvc
	sciences := testutil.CreateDepartment(t, env, "Sciences")
	arts := testutil.CreateDepartment(t, env, "Arts")
	teacher := testutil.CreateStaff(t, env, "Tina", "Teach", sciences, testutil.StaffOpts{})
	hod := testutil.CreateStaff(t, env, "Helen", "Hod", sciences, testutil.StaffOpts{IsHOD: true})
	prin := testutil.CreateStaff(t, env, "Paula", "Prin", arts, testutil.StaffOpts{IsPrincipal: true})
	testutil.CreateStaff(t, env, "Ian", "Inactive", arts, testutil.StaffOpts{Inactive: true})

	_, err := svc.Members(ctx, nil, nil)
	assert.Equal(t, staff.ErrNoProfile, err)
	_, err = svc.Members(ctx, &teacher, nil)
	assert.True(t, core.IsAuthorization(err))

	members, err := svc.Members(ctx, &hod, &staff.QueryFilter{DepartmentID: arts.ID})
	require.NoError(t, err)
	assert.Len(t, members, 2, "HODs are limited to their department")

	members, err = svc.Members(ctx, &prin, nil)
	require.NoError(t, err)
	assert.Len(t, members, 4)

	inScope, err := svc.InScope(ctx, &prin, staff.ScopeOrganization)
	require.NoError(t, err)
	assert.Len(t, inScope, 3)
	inScope, err = svc.InScope(ctx, &hod, staff.ScopeDepartment)
	require.NoError(t, err)
	assert.Len(t, inScope, 2)
	inScope, err = svc.InScope(ctx, &teacher, staff.ScopeSelf)
	require.NoError(t, err)
	assert.Equal(t, []staff.Staff{teacher}, inScope)
}

func TestService_rolesAndDepartments(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.StaffSvc

	role, err := svc.CreateRole(ctx, staff.NewRole{Name: "Teacher"})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, staff.NewRole{Name: "Teacher"})
	assert.True(t, core.IsValidation(err))

	ensured, err := svc.EnsureRole(ctx, " Teacher ")
	require.NoError(t, err)
	assert.Equal(t, role.ID, ensured.ID)
	ensured, err = svc.EnsureRole(ctx, "Librarian")
	require.NoError(t, err)
	assert.NotEqual(t, role.ID, ensured.ID)

	roles, err := svc.QueryRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	_, err = svc.CreateDepartment(ctx, staff.NewDepartment{Name: "Arts"})
	require.NoError(t, err)
	_, err = svc.CreateDepartment(ctx, staff.NewDepartment{Name: "Arts"})
	assert.True(t, core.IsValidation(err))
}
