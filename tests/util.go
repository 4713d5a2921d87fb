package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/dashboard"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
	"github.com/trezcool/kazi/core/user"
	appfs "github.com/trezcool/kazi/fs"
	emailsvc "github.com/trezcool/kazi/services/email"
	logsvc "github.com/trezcool/kazi/services/logger"
	inmemdb "github.com/trezcool/kazi/storage/database/inmem"
	sessionstore "github.com/trezcool/kazi/storage/session"
)

// Env wires every service on top of in-memory storage.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Sessions   *sessionstore.MemoryStore
	Mailer     *emailsvc.ConsoleService

	UserSvc       *user.Service
	StaffSvc      *staff.Service
	CatalogSvc    *catalog.Service
	ReflectionSvc *reflection.Service
	DashboardSvc  *dashboard.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewZapLogger(zap.NewNop())
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	reflection.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	db := inmemdb.Open()
	sessions := sessionstore.NewMemoryStore(conf.Redis.SessionTTL)
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)

	userSvc := user.NewService(inmemdb.NewUserRepository(db))
	staffSvc := staff.NewService(inmemdb.NewStaffRepository(db), userSvc)
	catalogSvc := catalog.NewService(inmemdb.NewCatalogRepository(db))

	return &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Sessions:   sessions,
		Mailer:     mailer,
		UserSvc:    userSvc,
		StaffSvc:   staffSvc,
		CatalogSvc: catalogSvc,
		ReflectionSvc: reflection.NewService(reflection.Deps{
			Repo:       inmemdb.NewReflectionRepository(db),
			Sessions:   sessions,
			Catalog:    catalogSvc,
			Staff:      staffSvc,
			Users:      userSvc,
			Mailer:     mailer,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
		}),
		DashboardSvc: dashboard.NewService(inmemdb.NewDashboardRepository(db)),
	}
}

func CreateUser(t *testing.T, env *Env, name, email, pwd string, isAdmin bool, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		IsActive:  true,
		IsAdmin:   isAdmin,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd))
	}
	usr, err := inmemdb.NewUserRepository(env.DB).CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func CreateRole(t *testing.T, env *Env, name string) staff.Role {
	t.Helper()
	role, err := env.StaffSvc.EnsureRole(context.Background(), name)
	require.NoError(t, err)
	return role
}

func CreateDepartment(t *testing.T, env *Env, name string) staff.Department {
	t.Helper()
	dept, err := env.StaffSvc.CreateDepartment(context.Background(), staff.NewDepartment{Name: name})
	require.NoError(t, err)
	return dept
}

// StaffOpts are the optional attributes of a staff fixture.
type StaffOpts struct {
	RoleID        int64
	IsHOD         bool
	IsCoordinator bool
	IsPrincipal   bool
	Inactive      bool
}

// CreateStaff creates a user and its staff profile in dept.
func CreateStaff(t *testing.T, env *Env, first, last string, dept staff.Department, opts StaffOpts) staff.Staff {
	t.Helper()

	ctx := context.Background()
	usr := CreateUser(t, env, first+" "+last, first+"."+last+"@school.test", "", false)
	s, err := env.StaffSvc.Onboard(ctx, staff.NewStaff{
		UserID:        usr.ID,
		FirstName:     first,
		LastName:      last,
		StaffNo:       "S" + first + last,
		RoleID:        opts.RoleID,
		DepartmentID:  dept.ID,
		IsHOD:         opts.IsHOD,
		IsCoordinator: opts.IsCoordinator,
		IsPrincipal:   opts.IsPrincipal,
	})
	require.NoError(t, err)
	if opts.Inactive {
		inactive := false
		s, err = env.StaffSvc.Update(ctx, s.ID, staff.UpdateStaff{IsActive: &inactive})
		require.NoError(t, err)
	}
	return s
}

// CreateDomain creates a domain of role with the named components.
func CreateDomain(t *testing.T, env *Env, name string, roleID int64, components ...string) catalog.Domain {
	t.Helper()

	ctx := context.Background()
	d, err := env.CatalogSvc.CreateDomain(ctx, catalog.NewDomain{Name: name, RoleID: roleID})
	require.NoError(t, err)
	for _, c := range components {
		_, err = env.CatalogSvc.AddComponent(ctx, d.ID, catalog.NewComponent{Name: c})
		require.NoError(t, err)
	}
	d, err = env.CatalogSvc.GetDomain(ctx, d.ID)
	require.NoError(t, err)
	return d
}

// CreateCurrentYear creates an academic year and makes it current.
func CreateCurrentYear(t *testing.T, env *Env, start int) catalog.AcademicYear {
	t.Helper()

	ctx := context.Background()
	ay, err := env.CatalogSvc.CreateAcademicYear(ctx, catalog.NewAcademicYear{StartYear: start, EndYear: start + 1})
	require.NoError(t, err)
	ay, err = env.CatalogSvc.SetCurrentAcademicYear(ctx, ay.ID)
	require.NoError(t, err)
	return ay
}

// PlanInput returns a valid growth plan payload addressing components.
func PlanInput(yearID int64, components ...int64) reflection.GrowthPlanInput {
	return reflection.GrowthPlanInput{
		AcademicYearID:      yearID,
		GoalStatement:       "Improve questioning techniques",
		ComponentsAddressed: components,
		IndicatorsOfSuccess: "Students answer open questions",
		Actions:             "Peer observation",
		Timelines:           "Term 1",
		EvaluatorName:       "J. Smith",
		Date:                "2024-09-01",
	}
}
