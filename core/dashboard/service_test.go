package dashboard

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

type stubRepo struct {
	stats      Stats
	domains    map[SelectionKind][]DomainCount
	components map[SelectionKind][]ComponentCount
	recent     []RecentReflection
	rows       []ReportRow
	filters    []Filter
}

func (r *stubRepo) Stats(_ context.Context, filter Filter) (Stats, error) {
	r.filters = append(r.filters, filter)
	return r.stats, nil
}

func (r *stubRepo) DomainCounts(_ context.Context, _ Filter, kind SelectionKind) ([]DomainCount, error) {
	return r.domains[kind], nil
}

func (r *stubRepo) ComponentCounts(_ context.Context, _ Filter, kind SelectionKind) ([]ComponentCount, error) {
	return r.components[kind], nil
}

func (r *stubRepo) RecentReflections(_ context.Context, _ Filter, limit int) ([]RecentReflection, error) {
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}

func (r *stubRepo) ReportRows(_ context.Context, filter Filter) ([]ReportRow, error) {
	r.filters = append(r.filters, filter)
	return r.rows, nil
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		part, total int
		want        float64
	}{
		{part: 0, total: 0, want: 0},
		{part: 3, total: 0, want: 0},
		{part: 4, total: 10, want: 40.0},
		{part: 1, total: 3, want: 33.3},
		{part: 2, total: 3, want: 66.7},
		{part: 5, total: 5, want: 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Completion(tt.part, tt.total), "%d/%d", tt.part, tt.total)
	}
}

func TestService_Dashboard_scopes(t *testing.T) {
	hod := &staff.Staff{ID: 3, DepartmentID: 2, IsActive: true, IsHOD: true}
	coord := &staff.Staff{ID: 4, DepartmentID: 1, IsActive: true, IsCoordinator: true}
	teacher := &staff.Staff{ID: 5, DepartmentID: 2, IsActive: true}

	tests := []struct {
		name       string
		actor      *staff.Staff
		wantScope  string
		wantFilter Filter
	}{
		{name: "hod", actor: hod, wantScope: "department", wantFilter: Filter{DepartmentID: 2}},
		{name: "coordinator", actor: coord, wantScope: "organization", wantFilter: Filter{}},
		{name: "teacher", actor: teacher, wantScope: "self", wantFilter: Filter{StaffID: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			dash, err := NewService(repo).Dashboard(context.Background(), tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, dash.Scope)
			assert.Equal(t, []Filter{tt.wantFilter}, repo.filters)

			views := 0
			for _, v := range []bool{dash.Department != nil, dash.Organization != nil, dash.Self != nil} {
				if v {
					views++
				}
			}
			assert.Equal(t, 1, views)
		})
	}

	_, err := NewService(&stubRepo{}).Dashboard(context.Background(), nil)
	assert.Equal(t, staff.ErrNoProfile, err)
	_, err = NewService(&stubRepo{}).Dashboard(context.Background(), &staff.Staff{ID: 9})
	assert.Equal(t, staff.ErrNoProfile, err)
}

func TestService_Dashboard_noTeachers(t *testing.T) {
	hod := &staff.Staff{ID: 1, DepartmentID: 1, IsActive: true, IsHOD: true}
	dash, err := NewService(&stubRepo{}).Dashboard(context.Background(), hod)
	require.NoError(t, err)
	require.NotNil(t, dash.Department)
	assert.Equal(t, 0.0, dash.Department.ReflectionCompletion)
	assert.NotNil(t, dash.Department.StrengthCounts)
	assert.NotNil(t, dash.Department.GrowthCounts)
	assert.NotNil(t, dash.Department.Recent)
}

func TestService_Dashboard_ordering(t *testing.T) {
	repo := &stubRepo{
		stats: Stats{TotalTeachers: 10, TeachersWithReflections: 4, GrowthPlans: 6, ObservedPlans: 2},
		domains: map[SelectionKind][]DomainCount{
			Strength: {{DomainID: 1, DomainName: "Planning", Total: 2}, {DomainID: 2, DomainName: "Environment", Total: 2}, {DomainID: 3, DomainName: "Instruction", Total: 5}},
		},
		components: map[SelectionKind][]ComponentCount{
			Growth: {
				{ComponentID: 1, Name: "Questioning", Count: 1},
				{ComponentID: 2, Name: "Feedback", Count: 3},
				{ComponentID: 3, Name: "Pacing", Count: 1},
				{ComponentID: 4, Name: "Routines", Count: 2},
				{ComponentID: 5, Name: "Rapport", Count: 1},
				{ComponentID: 6, Name: "Assessment", Count: 1},
				{ComponentID: 7, Name: "Unused", Count: 0},
			},
		},
	}
	svc := NewService(repo)

	dash, err := svc.Dashboard(context.Background(), &staff.Staff{ID: 1, DepartmentID: 1, IsActive: true, IsHOD: true})
	require.NoError(t, err)
	rep := dash.Department
	assert.Equal(t, 40.0, rep.ReflectionCompletion)
	assert.Equal(t, 4, rep.UnobservedPlans)
	assert.Equal(t, []string{"Instruction", "Environment", "Planning"}, domainNames(rep.StrengthCounts))
	assert.Equal(t, []DomainCount{}, rep.GrowthCounts)

	dash, err = svc.Dashboard(context.Background(), &staff.Staff{ID: 2, IsActive: true})
	require.NoError(t, err)
	top := dash.Self.TopGrowths
	require.Len(t, top, 5)
	names := make([]string, 0, len(top))
	for _, c := range top {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Feedback", "Routines", "Assessment", "Pacing", "Questioning"}, names)
	assert.Empty(t, dash.Self.TopStrengths)
}

func domainNames(counts []DomainCount) []string {
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.DomainName)
	}
	return names
}

func TestService_Export(t *testing.T) {
	created := time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC)
	repo := &stubRepo{rows: []ReportRow{
		{ReflectionID: 7, StaffName: "Tina Teach", StaffNo: "T001", DepartmentName: "Sciences", CreatedAt: created, Domains: 2, Strengths: 3, Growths: 2, GrowthPlans: 1, ObservedPlans: 1},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	err := svc.Export(ctx, &staff.Staff{ID: 5, IsActive: true}, new(bytes.Buffer))
	assert.True(t, core.IsAuthorization(err))

	buf := new(bytes.Buffer)
	require.NoError(t, svc.Export(ctx, &staff.Staff{ID: 3, DepartmentID: 2, IsActive: true, IsPrincipal: true}, buf))
	assert.Equal(t, []Filter{{}}, repo.filters)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Staff", rows[0][1])
	assert.Equal(t, []string{"7", "Tina Teach", "T001", "Sciences", "2024-09-02 08:30", "2", "3", "2", "1", "1"}, rows[1])
}
