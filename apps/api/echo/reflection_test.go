package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
	inmemdb "github.com/trezcool/kazi/storage/database/inmem"
	testutil "github.com/trezcool/kazi/tests"
)

type school struct {
	*testApp
	domain   catalog.Domain
	year     catalog.AcademicYear
	teacher  staff.Staff
	hod      staff.Staff
	otherHod staff.Staff
	coord    staff.Staff
}

func setupSchool(t *testing.T) *school {
	app := setup(t)
	sciences := testutil.CreateDepartment(t, app.Env, "Sciences")
	arts := testutil.CreateDepartment(t, app.Env, "Arts")
	role := testutil.CreateRole(t, app.Env, "Teacher")

	return &school{
		testApp:  app,
		domain:   testutil.CreateDomain(t, app.Env, "Instruction", role.ID, "Questioning", "Feedback", "Pacing"),
		year:     testutil.CreateCurrentYear(t, app.Env, 2024),
		teacher:  testutil.CreateStaff(t, app.Env, "Tina", "Teach", sciences, testutil.StaffOpts{RoleID: role.ID}),
		hod:      testutil.CreateStaff(t, app.Env, "Helen", "Hod", sciences, testutil.StaffOpts{RoleID: role.ID, IsHOD: true}),
		otherHod: testutil.CreateStaff(t, app.Env, "Oscar", "Other", arts, testutil.StaffOpts{IsHOD: true}),
		coord:    testutil.CreateStaff(t, app.Env, "Carl", "Coord", arts, testutil.StaffOpts{IsCoordinator: true}),
	}
}

func (s *school) token(t *testing.T, member staff.Staff) string {
	usr, err := s.UserSvc.GetByID(context.Background(), member.UserID)
	require.NoError(t, err)
	return s.getToken(t, usr)
}

func (s *school) component(i int) int64 {
	return s.domain.Components[i].ID
}

func Test_wizardApi_flow(t *testing.T) {
	s := setupSchool(t)
	teacherToken := s.token(t, s.teacher)
	c1, c2, c3 := s.component(0), s.component(1), s.component(2)
	domainKey := reflection.DomainStepKey(s.domain.ID)

	s.run(t, httpTest{
		name: "steps", path: "/v1/wizard/steps", token: teacherToken,
		wantData: marchallObj(t, reflection.BuildSteps([]catalog.Domain{s.domain})),
	})

	rec := s.run(t, httpTest{method: http.MethodPost, path: "/v1/wizard", token: teacherToken, wantCode: http.StatusCreated})
	var form reflection.StepForm
	unmarchall(t, rec, &form)
	require.NotEmpty(t, form.SessionID)
	assert.Equal(t, domainKey, form.Step.Key)
	require.NotNil(t, form.Domain)
	assert.Len(t, form.Domain.Components, 3)

	sid := form.SessionID
	stepPath := func(key string) string { return fmt.Sprintf("/v1/wizard/%s/steps/%s", sid, key) }

	tests := []httpTest{
		{
			name: "Session belongs to its author", path: "/v1/wizard/" + sid, token: s.token(t, s.hod),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "wizard session not found"}),
		},
		{
			name: "Unknown step", method: http.MethodPost, path: stepPath("domain_999"), token: teacherToken,
			body: []byte(`{}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "wizard step not found"}),
		},
		{
			name: "Strength and growth overlap", method: http.MethodPost, path: stepPath(domainKey), token: teacherToken,
			body:     []byte(fmt.Sprintf(`{"strengths": [%d, %d], "growths": [%d]}`, c1, c2, c2)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"growths": "a component cannot be both a strength and a growth"}),
		},
		{
			name: "Growth plan before domains", method: http.MethodPost, path: stepPath(reflection.GrowthPlanStepKey), token: teacherToken,
			body:     marchallObj(t, testutil.PlanInput(0)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{domainKey: "this step has not been completed"}),
		},
		{
			name: "Empty payload", method: http.MethodPost, path: stepPath(reflection.GrowthPlanStepKey), token: teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{domainKey: "this step has not been completed"}),
		},
		{
			name: "Malformed payload", method: http.MethodPost, path: stepPath(domainKey), token: teacherToken,
			body: []byte(`{"strengths": [`), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.run(t, tt)
		})
	}

	rec = s.run(t, httpTest{
		method: http.MethodPost, path: stepPath(domainKey), token: teacherToken,
		body: []byte(fmt.Sprintf(`{"strengths": [%d, %d], "growths": [%d, %d, %d], "next_steps": " Practice "}`, c1, c1, c2, c3, c2)),
	})
	var res reflection.StepResult
	unmarchall(t, rec, &res)
	assert.False(t, res.Done)
	require.NotNil(t, res.Next)
	assert.Equal(t, reflection.GrowthPlanStepKey, res.Next.Step.Key)
	assert.Equal(t, []string{domainKey}, res.Next.Completed)
	assert.Equal(t, s.year.ID, res.Next.CurrentAcademicYearID)
	choices := make([]int64, 0, len(res.Next.Choices))
	for _, c := range res.Next.Choices {
		choices = append(choices, c.ID)
	}
	assert.Equal(t, []int64{c2, c3}, choices)

	// stepping back returns the stored data
	rec = s.run(t, httpTest{path: "/v1/wizard/" + sid + "?step=" + domainKey, token: teacherToken})
	var back struct {
		Data reflection.DomainSelection `json:"data"`
	}
	unmarchall(t, rec, &back)
	assert.Equal(t, []int64{c1}, back.Data.Strengths)
	assert.Equal(t, []int64{c2, c3}, back.Data.Growths)
	assert.Equal(t, "Practice", back.Data.NextSteps)

	s.run(t, httpTest{
		name: "Addressed component not a growth", method: http.MethodPost, path: stepPath(reflection.GrowthPlanStepKey), token: teacherToken,
		body:     marchallObj(t, testutil.PlanInput(0, c1)),
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{
			"growth_plan.components_addressed": fmt.Sprintf("component %d was not selected as a growth in this reflection", c1),
		}),
	})
	assert.Zero(t, s.DB.Count(inmemdb.TableReflection))

	rec = s.run(t, httpTest{
		method: http.MethodPost, path: stepPath(reflection.GrowthPlanStepKey), token: teacherToken,
		body: marchallObj(t, testutil.PlanInput(0, c2)), wantCode: http.StatusCreated,
	})
	res = reflection.StepResult{}
	unmarchall(t, rec, &res)
	assert.True(t, res.Done)
	assert.NotZero(t, res.ReflectionID)

	// the session is gone once committed
	s.run(t, httpTest{path: "/v1/wizard/" + sid, token: teacherToken, wantCode: http.StatusNotFound})

	rec = s.run(t, httpTest{path: fmt.Sprintf("/v1/reflections/%d", res.ReflectionID), token: teacherToken})
	var refl reflection.Reflection
	unmarchall(t, rec, &refl)
	require.Len(t, refl.Domains, 1)
	assert.Equal(t, []int64{c1}, refl.Domains[0].Strengths)
	assert.Equal(t, []int64{c2, c3}, refl.Domains[0].Growths)
	require.Len(t, refl.GrowthPlans, 1)
	assert.Equal(t, s.year.ID, refl.GrowthPlans[0].AcademicYearID)
	assert.Equal(t, []int64{c2}, refl.GrowthPlans[0].ComponentsAddressed)
}

func Test_wizardApi_cancel(t *testing.T) {
	s := setupSchool(t)
	teacherToken := s.token(t, s.teacher)

	rec := s.run(t, httpTest{method: http.MethodPost, path: "/v1/wizard", token: teacherToken, wantCode: http.StatusCreated})
	var form reflection.StepForm
	unmarchall(t, rec, &form)

	s.run(t, httpTest{method: http.MethodDelete, path: "/v1/wizard/" + form.SessionID, token: teacherToken, wantCode: http.StatusNoContent})
	s.run(t, httpTest{path: "/v1/wizard/" + form.SessionID, token: teacherToken, wantCode: http.StatusNotFound})
	assert.Zero(t, s.DB.Count(inmemdb.TableReflection))
	assert.Zero(t, s.DB.Count(inmemdb.TableGrowthPlan))
}

// commitReflection commits a one-shot reflection for the teacher and returns it.
func (s *school) commitReflection(t *testing.T) reflection.Reflection {
	sub := reflection.Submission{
		Domains: []reflection.DomainSelection{
			{DomainID: s.domain.ID, Strengths: []int64{s.component(0)}, Growths: []int64{s.component(1)}},
		},
		GrowthPlan: testutil.PlanInput(s.year.ID, s.component(1)),
	}
	token := s.token(t, s.teacher)
	rec := s.run(t, httpTest{method: http.MethodPost, path: "/v1/reflections", token: token, body: marchallObj(t, sub), wantCode: http.StatusCreated})
	var resp IDResponse
	unmarchall(t, rec, &resp)

	rec = s.run(t, httpTest{path: fmt.Sprintf("/v1/reflections/%d", resp.ID), token: token})
	var refl reflection.Reflection
	unmarchall(t, rec, &refl)
	require.Len(t, refl.GrowthPlans, 1)
	return refl
}

func Test_reflectionApi_visibility(t *testing.T) {
	s := setupSchool(t)
	refl := s.commitReflection(t)
	path := fmt.Sprintf("/v1/reflections/%d", refl.ID)
	admin := testutil.CreateUser(t, s.Env, "Admin", "admin@school.test", "", true)

	tests := []httpTest{
		{name: "Owner", path: path, token: s.token(t, s.teacher)},
		{name: "HOD of the department", path: path, token: s.token(t, s.hod)},
		{name: "Coordinator", path: path, token: s.token(t, s.coord)},
		{
			name: "HOD of another department", path: path, token: s.token(t, s.otherHod), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you do not have permission to view this reflection"}),
		},
		{
			name: "No staff profile", path: path, token: s.getToken(t, admin), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "no staff profile"}),
		},
		{name: "Unknown", path: "/v1/reflections/99", token: s.token(t, s.teacher), wantCode: http.StatusNotFound},
		{name: "Malformed ID", path: "/v1/reflections/abc", token: s.token(t, s.teacher), wantCode: http.StatusNotFound},
		{
			name: "Staff reflections (HOD)", path: fmt.Sprintf("/v1/staff/%d/reflections", s.teacher.ID), token: s.token(t, s.hod),
			wantData: marchallList(t, refl),
		},
		{
			name: "Staff reflections (other HOD)", path: fmt.Sprintf("/v1/staff/%d/reflections", s.teacher.ID), token: s.token(t, s.otherHod),
			wantCode: http.StatusForbidden,
		},
		{name: "List (coordinator)", path: "/v1/reflections", token: s.token(t, s.coord), wantData: marchallList(t, refl)},
		{name: "List (other HOD)", path: "/v1/reflections", token: s.token(t, s.otherHod), wantData: marchallList(t, []interface{}{}...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.run(t, tt)
		})
	}
}

func Test_reflectionApi_updateDomains(t *testing.T) {
	s := setupSchool(t)
	refl := s.commitReflection(t)
	path := fmt.Sprintf("/v1/reflections/%d/domains", refl.ID)
	c1, c2, c3 := s.component(0), s.component(1), s.component(2)

	s.run(t, httpTest{
		name: "Not the author", method: http.MethodPut, path: path, token: s.token(t, s.hod),
		body:     []byte(fmt.Sprintf(`{"domains": [{"domain_id": %d, "strengths": [%d]}]}`, s.domain.ID, c1)),
		wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the author can edit this reflection"}),
	})
	s.run(t, httpTest{
		name: "Overlap", method: http.MethodPut, path: path, token: s.token(t, s.teacher),
		body:     []byte(fmt.Sprintf(`{"domains": [{"domain_id": %d, "strengths": [%d], "growths": [%d]}]}`, s.domain.ID, c3, c3)),
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"domains[0].growths": "a component cannot be both a strength and a growth"}),
	})

	rec := s.run(t, httpTest{
		method: http.MethodPut, path: path, token: s.token(t, s.teacher),
		body: []byte(fmt.Sprintf(`{"domains": [{"domain_id": %d, "strengths": [%d, %d], "growths": [%d]}]}`, s.domain.ID, c1, c3, c2)),
	})
	var updated reflection.Reflection
	unmarchall(t, rec, &updated)
	require.Len(t, updated.Domains, 1)
	assert.Equal(t, []int64{c1, c3}, updated.Domains[0].Strengths)
	assert.Equal(t, []int64{c2}, updated.Domains[0].Growths)
}

func Test_growthPlanApi_observation(t *testing.T) {
	s := setupSchool(t)
	refl := s.commitReflection(t)
	planPath := fmt.Sprintf("/v1/growth-plans/%d", refl.GrowthPlans[0].ID)
	obsPath := planPath + "/observation"
	teacherToken := s.token(t, s.teacher)

	// unobserved plans can be edited
	edit := testutil.PlanInput(s.year.ID, s.component(1))
	edit.GoalStatement = "Sharpen feedback loops"
	rec := s.run(t, httpTest{method: http.MethodPut, path: planPath, token: teacherToken, body: marchallObj(t, edit)})
	var gp reflection.GrowthPlan
	unmarchall(t, rec, &gp)
	assert.Equal(t, "Sharpen feedback loops", gp.GoalStatement)
	assert.Nil(t, gp.Observation)

	tests := []httpTest{
		{
			name: "Teacher cannot observe", method: http.MethodPost, path: obsPath, token: teacherToken,
			body: []byte(`{"text": "Looks great"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "only reviewers can comment on growth plans"}),
		},
		{
			name: "Coordinator cannot write the HOD field", method: http.MethodPost, path: obsPath, token: s.token(t, s.coord),
			body: []byte(`{"field": "hod_comment", "text": "Sneaky"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you cannot write hod_comment"}),
		},
		{
			name: "HOD of another department", method: http.MethodPost, path: obsPath, token: s.token(t, s.otherHod),
			body: []byte(`{"text": "Hmm"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Blank text", method: http.MethodPost, path: obsPath, token: s.token(t, s.hod),
			body: []byte(`{"text": "   "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"text": "this field cannot be blank"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.run(t, tt)
		})
	}
	assert.Zero(t, s.DB.Count(inmemdb.TableObservation))
	assert.Empty(t, s.Mailer.SentMessages())

	rec = s.run(t, httpTest{method: http.MethodPost, path: obsPath, token: s.token(t, s.hod), body: []byte(`{"text": "Clear indicators"}`)})
	var obs reflection.Observation
	unmarchall(t, rec, &obs)
	assert.Equal(t, "Clear indicators", obs.HODComment.String)
	assert.False(t, obs.CoordinatorComment.Valid)

	rec = s.run(t, httpTest{method: http.MethodPost, path: obsPath, token: s.token(t, s.coord), body: []byte(`{"text": "Agreed"}`)})
	obs = reflection.Observation{}
	unmarchall(t, rec, &obs)
	assert.Equal(t, "Clear indicators", obs.HODComment.String)
	assert.Equal(t, "Agreed", obs.CoordinatorComment.String)
	assert.False(t, obs.PrinComment.Valid)
	assert.Equal(t, 1, s.DB.Count(inmemdb.TableObservation))

	sent := s.Mailer.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "Tina.Teach@school.test", sent[0].To[0].Address)

	// observed plans are locked
	locked := marchallObj(t, httpErr{Error: reflection.ErrPlanLocked.Error()})
	s.run(t, httpTest{method: http.MethodPut, path: planPath, token: teacherToken, body: marchallObj(t, edit), wantCode: http.StatusConflict, wantData: locked})
	s.run(t, httpTest{method: http.MethodDelete, path: planPath, token: teacherToken, wantCode: http.StatusConflict, wantData: locked})

	rec = s.run(t, httpTest{path: planPath, token: s.token(t, s.hod)})
	gp = reflection.GrowthPlan{}
	unmarchall(t, rec, &gp)
	require.NotNil(t, gp.Observation)
	assert.Equal(t, "Agreed", gp.Observation.CoordinatorComment.String)
}

func Test_growthPlanApi_addAndDelete(t *testing.T) {
	s := setupSchool(t)
	refl := s.commitReflection(t)
	teacherToken := s.token(t, s.teacher)
	path := fmt.Sprintf("/v1/reflections/%d/growth-plans", refl.ID)

	s.run(t, httpTest{
		name: "Not the author", method: http.MethodPost, path: path, token: s.token(t, s.hod),
		body: marchallObj(t, testutil.PlanInput(s.year.ID)), wantCode: http.StatusForbidden,
	})

	rec := s.run(t, httpTest{method: http.MethodPost, path: path, token: teacherToken, body: marchallObj(t, testutil.PlanInput(s.year.ID)), wantCode: http.StatusCreated})
	var gp reflection.GrowthPlan
	unmarchall(t, rec, &gp)
	assert.Equal(t, refl.ID, gp.ReflectionID)
	assert.Equal(t, 2, s.DB.Count(inmemdb.TableGrowthPlan))

	s.run(t, httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/growth-plans/%d", gp.ID), token: teacherToken, wantCode: http.StatusNoContent})
	assert.Equal(t, 1, s.DB.Count(inmemdb.TableGrowthPlan))
}
