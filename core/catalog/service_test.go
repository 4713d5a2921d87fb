package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
	inmemdb "github.com/trezcool/kazi/storage/database/inmem"
	testutil "github.com/trezcool/kazi/tests"
)

func TestService_domains(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.CatalogSvc
	teacher := testutil.CreateRole(t, env, "Teacher")
	librarian := testutil.CreateRole(t, env, "Librarian")

	instr := testutil.CreateDomain(t, env, "Instruction", teacher.ID, "Questioning", "Feedback")
	env1 := testutil.CreateDomain(t, env, "Environment", teacher.ID, "Routines")
	testutil.CreateDomain(t, env, "Collections", librarian.ID, "Cataloguing")
	testutil.CreateDomain(t, env, "Orphan", 0)

	assert.Equal(t, []int64{1, 2}, instr.ComponentIDs())
	assert.True(t, instr.HasComponent(2))
	assert.False(t, instr.HasComponent(3))

	_, err := svc.AddComponent(ctx, 42, catalog.NewComponent{Name: "Nope"})
	assert.Equal(t, catalog.ErrDomainNotFound, err)

	doms, err := svc.DomainsForRole(ctx, null.Int64From(teacher.ID))
	require.NoError(t, err)
	require.Len(t, doms, 2)
	assert.Equal(t, instr.ID, doms[0].ID)
	assert.Equal(t, env1.ID, doms[1].ID)
	assert.Len(t, doms[0].Components, 2)

	doms, err = svc.DomainsForRole(ctx, null.Int64{})
	require.NoError(t, err)
	assert.Empty(t, doms)

	doms, err = svc.QueryDomains(ctx, catalog.DomainFilter{NoRole: true})
	require.NoError(t, err)
	require.Len(t, doms, 1)
	assert.Equal(t, "Orphan", doms[0].Name)

	names, err := svc.ComponentNames(ctx, 1, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "Questioning", 3: "Routines"}, names)

	require.NoError(t, svc.DeleteDomain(ctx, instr.ID))
	assert.True(t, core.IsNotFound(svc.DeleteDomain(ctx, instr.ID)))
	comps, err := svc.GetComponents(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, "Routines", comps[0].Name)
}

func TestService_academicYears(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.CatalogSvc

	_, err := svc.CurrentAcademicYear(ctx)
	assert.Equal(t, catalog.ErrNoCurrentYear, err)

	y23, err := svc.CreateAcademicYear(ctx, catalog.NewAcademicYear{StartYear: 2023, EndYear: 2024})
	require.NoError(t, err)
	y24, err := svc.CreateAcademicYear(ctx, catalog.NewAcademicYear{StartYear: 2024, EndYear: 2025})
	require.NoError(t, err)
	_, err = svc.CreateAcademicYear(ctx, catalog.NewAcademicYear{StartYear: 2024, EndYear: 2025})
	assert.True(t, core.IsValidation(err))

	ny := catalog.NewAcademicYear{StartYear: 2025, EndYear: 2025}
	assert.Error(t, ny.Validate(env.Validate))

	_, err = svc.SetCurrentAcademicYear(ctx, 42)
	assert.Equal(t, catalog.ErrAcademicYearNotFound, err)

	cur, err := svc.SetCurrentAcademicYear(ctx, y23.ID)
	require.NoError(t, err)
	assert.Equal(t, "2023/2024 (Current)", cur.String())
	cur, err = svc.SetCurrentAcademicYear(ctx, y24.ID)
	require.NoError(t, err)
	assert.True(t, cur.IsCurrent)

	years, err := svc.QueryAcademicYears(ctx)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, y24.ID, years[0].ID, "latest first")
	current := 0
	for _, ay := range years {
		if ay.IsCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)
	assert.Equal(t, "2023/2024", years[1].String())

	got, err := svc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, y24.ID, got.ID)
}

const catalogYAML = `
academic_years:
  - {start: 2023, end: 2024}
  - {start: 2024, end: 2025, current: true}
roles:
  - name: Teacher
    domains:
      - name: Instruction
        components: [Questioning, Feedback, " Feedback "]
      - name: Environment
        components: [Routines]
`

func TestService_LoadCatalog(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.CatalogSvc

	rep, err := svc.LoadCatalog(ctx, strings.NewReader(catalogYAML), env.StaffSvc)
	require.NoError(t, err)
	assert.Equal(t, catalog.LoadReport{Domains: 2, Components: 3, AcademicYears: 2}, rep)

	role, err := env.StaffSvc.EnsureRole(ctx, "Teacher")
	require.NoError(t, err)
	doms, err := svc.DomainsForRole(ctx, null.Int64From(role.ID))
	require.NoError(t, err)
	require.Len(t, doms, 2)
	assert.Equal(t, "Instruction", doms[0].Name)
	assert.Len(t, doms[0].Components, 2)

	cur, err := svc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2024, cur.StartYear)

	more := catalogYAML + "      - name: Planning\n        components: [Objectives]\n"
	rep, err = svc.LoadCatalog(ctx, strings.NewReader(more), env.StaffSvc)
	require.NoError(t, err)
	assert.Equal(t, catalog.LoadReport{Domains: 1, Components: 1}, rep)
	assert.Equal(t, 3, env.DB.Count(inmemdb.TableDomain))

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "roles: [:"},
		{name: "blank role", doc: "roles:\n  - name: ' '\n"},
		{name: "bad year", doc: "academic_years:\n  - {start: 2025, end: 2024}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LoadCatalog(ctx, strings.NewReader(tt.doc), env.StaffSvc)
			assert.Error(t, err)
		})
	}
}
