package dashboard_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
	testutil "github.com/trezcool/kazi/tests"
)

type school struct {
	env      *testutil.Env
	year     catalog.AcademicYear
	domain   catalog.Domain
	hod      staff.Staff
	coord    staff.Staff
	teachers []staff.Staff // Sciences, excluding the HOD
	artist   staff.Staff
}

func (s school) reflect(t *testing.T, author staff.Staff, strengths, growths []int64) int64 {
	t.Helper()
	id, err := s.env.ReflectionSvc.Commit(context.Background(), &author, reflection.Submission{
		Domains:    []reflection.DomainSelection{{DomainID: s.domain.ID, Strengths: strengths, Growths: growths}},
		GrowthPlan: testutil.PlanInput(s.year.ID, growths...),
	})
	require.NoError(t, err)
	return id
}

// setupSchool builds a Sciences department of 10 active staff (the HOD and 9 teachers),
// 4 of whom reflected, plus an inactive Sciences teacher and an Arts teacher who both reflected.
func setupSchool(t *testing.T) school {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	role := testutil.CreateRole(t, env, "Teacher")
	sciences := testutil.CreateDepartment(t, env, "Sciences")
	arts := testutil.CreateDepartment(t, env, "Arts")

	s := school{
		env:    env,
		year:   testutil.CreateCurrentYear(t, env, 2024),
		domain: testutil.CreateDomain(t, env, "Instruction", role.ID, "Questioning", "Feedback", "Pacing"),
		hod:    testutil.CreateStaff(t, env, "Helen", "Hod", sciences, testutil.StaffOpts{RoleID: role.ID, IsHOD: true}),
		coord:  testutil.CreateStaff(t, env, "Carl", "Coord", arts, testutil.StaffOpts{IsCoordinator: true}),
		artist: testutil.CreateStaff(t, env, "Arty", "Arts", arts, testutil.StaffOpts{RoleID: role.ID}),
	}
	for i := 1; i <= 9; i++ {
		s.teachers = append(s.teachers, testutil.CreateStaff(t, env, fmt.Sprintf("Teacher%d", i), "Sci", sciences, testutil.StaffOpts{RoleID: role.ID}))
	}
	leaver := testutil.CreateStaff(t, env, "Lea", "Leaver", sciences, testutil.StaffOpts{RoleID: role.ID})

	q, f, p := s.domain.Components[0].ID, s.domain.Components[1].ID, s.domain.Components[2].ID
	s.reflect(t, leaver, []int64{q}, []int64{f})
	s.reflect(t, s.teachers[0], []int64{q}, []int64{f, p})
	s.reflect(t, s.teachers[1], []int64{q, f}, []int64{p})
	s.reflect(t, s.teachers[2], []int64{p}, []int64{f})
	s.reflect(t, s.teachers[3], []int64{q}, []int64{f})
	s.reflect(t, s.artist, []int64{f}, []int64{q})
	s.reflect(t, s.teachers[0], []int64{f}, []int64{q})

	inactive := false
	_, err := env.StaffSvc.Update(ctx, leaver.ID, staff.UpdateStaff{IsActive: &inactive})
	require.NoError(t, err)
	return s
}

func TestService_Dashboard_department(t *testing.T) {
	s := setupSchool(t)
	ctx := context.Background()

	// observe the newest Sciences plan; the listing still shows the leaver's reflection
	refls, err := s.env.ReflectionSvc.QueryReflections(ctx, &s.hod)
	require.NoError(t, err)
	require.Len(t, refls, 6)
	require.Equal(t, s.teachers[0].ID, refls[0].StaffID)
	_, err = s.env.ReflectionSvc.SubmitObservation(ctx, &s.hod, refls[0].GrowthPlans[0].ID, reflection.HODComment, "good")
	require.NoError(t, err)

	dash, err := s.env.DashboardSvc.Dashboard(ctx, &s.hod)
	require.NoError(t, err)
	assert.Equal(t, "department", dash.Scope)
	require.NotNil(t, dash.Department)
	assert.Nil(t, dash.Organization)
	assert.Nil(t, dash.Self)

	rep := dash.Department
	assert.Equal(t, 10, rep.TotalTeachers)
	assert.Equal(t, 4, rep.TeachersWithReflections)
	assert.Equal(t, 40.0, rep.ReflectionCompletion)
	assert.Equal(t, 5, rep.TotalReflections)
	assert.Equal(t, 5, rep.GrowthPlans)
	assert.Equal(t, 1, rep.ObservedPlans)
	assert.Equal(t, 4, rep.UnobservedPlans)
	require.Len(t, rep.StrengthCounts, 1)
	assert.Equal(t, "Instruction", rep.StrengthCounts[0].DomainName)
	assert.Equal(t, 6, rep.StrengthCounts[0].Total)
	require.Len(t, rep.GrowthCounts, 1)
	assert.Equal(t, 6, rep.GrowthCounts[0].Total)

	require.Len(t, rep.Recent, 5)
	assert.Equal(t, s.teachers[0].ID, rep.Recent[0].StaffID)
	assert.Equal(t, "Sciences", rep.Recent[0].DepartmentName)
	assert.Equal(t, 1, rep.Recent[0].ObservedPlans)
	for i := 1; i < len(rep.Recent); i++ {
		assert.Greater(t, rep.Recent[i-1].ID, rep.Recent[i].ID)
	}
}

func TestService_Dashboard_organization(t *testing.T) {
	s := setupSchool(t)

	dash, err := s.env.DashboardSvc.Dashboard(context.Background(), &s.coord)
	require.NoError(t, err)
	assert.Equal(t, "organization", dash.Scope)
	require.NotNil(t, dash.Organization)

	rep := dash.Organization
	assert.Equal(t, 12, rep.TotalTeachers)
	assert.Equal(t, 5, rep.TeachersWithReflections)
	assert.Equal(t, 41.7, rep.ReflectionCompletion)
	assert.Equal(t, 6, rep.TotalReflections)
	assert.Len(t, rep.Recent, 5)
}

func TestService_Dashboard_self(t *testing.T) {
	s := setupSchool(t)
	me := s.teachers[0]

	dash, err := s.env.DashboardSvc.Dashboard(context.Background(), &me)
	require.NoError(t, err)
	assert.Equal(t, "self", dash.Scope)
	require.NotNil(t, dash.Self)

	rep := dash.Self
	assert.Equal(t, 2, rep.TotalReflections)
	assert.Equal(t, 1, rep.DomainsCovered)
	assert.Equal(t, 2, rep.StrengthsCount)
	assert.Equal(t, 3, rep.GrowthsCount)
	assert.Equal(t, 2, rep.TotalGrowthPlans)
	require.Len(t, rep.TopStrengths, 2)
	assert.Equal(t, 1, rep.TopStrengths[0].Count)
	assert.Equal(t, "Feedback", rep.TopStrengths[0].Name)
	assert.Equal(t, "Questioning", rep.TopStrengths[1].Name)
	require.Len(t, rep.Recent, 2)
	for _, r := range rep.Recent {
		assert.Equal(t, me.ID, r.StaffID)
	}
}

func TestService_Report(t *testing.T) {
	s := setupSchool(t)
	ctx := context.Background()

	_, err := s.env.DashboardSvc.Report(ctx, &s.teachers[0])
	assert.Error(t, err)

	rows, err := s.env.DashboardSvc.Report(ctx, &s.hod)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, "Sciences", r.DepartmentName)
		assert.Equal(t, 1, r.Domains)
		assert.Equal(t, 1, r.GrowthPlans)
	}
}
