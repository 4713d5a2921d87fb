package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/user"
	testutil "github.com/trezcool/kazi/tests"
)

const strongPwd = "Sup3r$ecret!"

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		validate:   env.Validate,
		translator: env.Translator,
		usrSvc:     env.UserSvc,
		staffSvc:   env.StaffSvc,
		catalogSvc: env.CatalogSvc,
		out:        out,
	}, env, out
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (tt cliTest) check(t *testing.T, cli *commandLine, out *bytes.Buffer) {
	out.Reset()
	mockPassword(t, tt.pwd)

	err := cli.run(tt.args)
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		require.NoError(t, err)
	}
	if tt.wantOut != "" {
		assert.Contains(t, out.String(), tt.wantOut)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	var gotCmd string
	var gotArgs []string
	orig := gooseRunFunc
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version":
		case "up-to", "down-to":
			if len(args) == 0 {
				return errors.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
		default:
			return errors.Errorf("%q: no such command", command)
		}
		gotCmd, gotArgs = command, args
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s)"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}
	assert.Equal(t, "down-to", gotCmd)
	assert.Equal(t, []string{"1"}, gotArgs)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, out := setup(t)
	testutil.CreateUser(t, env, "Taken", "taken@school.test", strongPwd, false)

	tests := []cliTest{
		{name: "missing flags", args: []string{"adduser"}, pwd: strongPwd, wantErrStr: "required flag(s)"},
		{
			name:    "no password",
			args:    []string{"adduser", "--name", "Jane Doe", "--email", "jane@school.test"},
			wantErr: errNoPassword,
		},
		{
			name:       "weak password",
			args:       []string{"adduser", "--name", "Jane Doe", "--email", "jane@school.test"},
			pwd:        "short",
			wantErrStr: "password: password must contain at least 8 characters",
		},
		{
			name:       "invalid email",
			args:       []string{"adduser", "--name", "Jane Doe", "--email", "jane"},
			pwd:        strongPwd,
			wantErrStr: "email:",
		},
		{
			name:       "email taken",
			args:       []string{"adduser", "--name", "Jane Doe", "--email", "TAKEN@school.test"},
			pwd:        strongPwd,
			wantErrStr: "email: " + user.ErrEmailExists.Error(),
		},
		{
			name:    "success",
			args:    []string{"adduser", "--name", "Jane Doe", "--email", "Jane@School.test", "--admin"},
			pwd:     strongPwd,
			wantOut: "<jane@school.test>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	usr, err := env.UserSvc.GetByEmail(context.Background(), "jane@school.test")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", usr.Name)
	assert.True(t, usr.IsAdmin)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(strongPwd))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, out := setup(t)
	usr := testutil.CreateUser(t, env, "Jane Doe", "jane@school.test", strongPwd, false)

	const newPwd = "N3w&Better!"
	tests := []cliTest{
		{name: "missing email", args: []string{"resetpassword"}, pwd: newPwd, wantErrStr: "required flag(s)"},
		{name: "no password", args: []string{"resetpassword", "--email", usr.Email}, wantErr: errNoPassword},
		{name: "user not found", args: []string{"resetpassword", "--email", "lol@school.test"}, pwd: newPwd, wantErr: user.ErrNotFound},
		{
			name:       "weak password",
			args:       []string{"resetpassword", "--email", usr.Email},
			pwd:        "12345678910",
			wantErrStr: "password: password cannot be entirely numeric",
		},
		{name: "success", args: []string{"resetpassword", "--email", "JANE@school.test"}, pwd: newPwd, wantOut: "password updated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	refreshed, err := env.UserSvc.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword(newPwd))
	assert.Error(t, refreshed.CheckPassword(strongPwd))
}

func Test_commandLine_addStaff(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, env, "Jane Doe", "jane@school.test", strongPwd, false)
	testutil.CreateUser(t, env, "John Doe", "john@school.test", strongPwd, false)
	sciences := testutil.CreateDepartment(t, env, "Sciences")

	base := func(email, staffNo string, extra ...string) []string {
		args := []string{"addstaff", "--email", email, "--first-name", "Jane", "--last-name", "Doe",
			"--staff-no", staffNo, "--department", "sciences"}
		return append(args, extra...)
	}

	tests := []cliTest{
		{name: "missing flags", args: []string{"addstaff", "--email", "jane@school.test"}, wantErrStr: "required flag(s)"},
		{name: "user not found", args: base("lol@school.test", "T001"), wantErr: user.ErrNotFound},
		{name: "invalid staff number", args: base("jane@school.test", "T-001"), wantErrStr: "staff_no:"},
		{name: "success", args: base("jane@school.test", "T001", "--role", "Teacher", "--hod"), wantOut: "(Jane Doe) in sciences"},
		{name: "profile exists", args: base("jane@school.test", "T002"), wantErrStr: "user_id: this user already has a staff profile"},
		{name: "staff number taken", args: base("john@school.test", "T001"), wantErrStr: "staff_no: a staff member with this number already exists"},
		{
			name:    "new department",
			args:    []string{"addstaff", "--email", "john@school.test", "--first-name", "John", "--last-name", "Doe", "--staff-no", "T003", "--department", " Arts "},
			wantOut: "created staff",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	jane, err := env.UserSvc.GetByEmail(ctx, "jane@school.test")
	require.NoError(t, err)
	s, err := env.StaffSvc.GetByUser(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, sciences.ID, s.DepartmentID)
	assert.True(t, s.IsHOD)
	assert.True(t, s.RoleID.Valid)

	roles, err := env.StaffSvc.QueryRoles(ctx)
	require.NoError(t, err)
	if assert.Len(t, roles, 1) {
		assert.Equal(t, "Teacher", roles[0].Name)
		assert.Equal(t, roles[0].ID, s.RoleID.Int64)
	}

	depts, err := env.StaffSvc.QueryDepartments(ctx)
	require.NoError(t, err)
	assert.Len(t, depts, 2)

	john, err := env.UserSvc.GetByEmail(ctx, "john@school.test")
	require.NoError(t, err)
	s, err = env.StaffSvc.GetByUser(ctx, john.ID)
	require.NoError(t, err)
	assert.False(t, s.RoleID.Valid)
	assert.NotEqual(t, sciences.ID, s.DepartmentID)
}

const catalogYAML = `
academic_years:
  - start: 2023
    end: 2024
  - start: 2024
    end: 2025
    current: true
roles:
  - name: Teacher
    domains:
      - name: Instruction
        components: [Questioning, Feedback]
      - name: Environment
        components: [Routines]
`

func Test_commandLine_loadCatalog(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("roles: [\n"), 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"loadcatalog"}, wantErrStr: "accepts 1 arg(s)"},
		{name: "missing file", args: []string{"loadcatalog", filepath.Join(t.TempDir(), "nope.yaml")}, wantErrStr: "opening catalog file"},
		{name: "invalid yaml", args: []string{"loadcatalog", badPath}, wantErrStr: "decoding catalog"},
		{name: "load", args: []string{"loadcatalog", path}, wantOut: "created 2 domain(s), 3 component(s), 2 academic year(s)"},
		{name: "reload is a no-op", args: []string{"loadcatalog", path}, wantOut: "created 0 domain(s), 0 component(s), 0 academic year(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	doms, err := env.CatalogSvc.QueryDomains(ctx, catalog.DomainFilter{WithChildren: true})
	require.NoError(t, err)
	assert.Len(t, doms, 2)

	current, err := env.CatalogSvc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2024, current.StartYear)
}

func Test_commandLine_setYear(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "missing args", args: []string{"setyear", "2024"}, wantErrStr: "accepts 2 arg(s)"},
		{name: "not a number", args: []string{"setyear", "lol", "2025"}, wantErrStr: `start year must be a number (got "lol")`},
		{name: "invalid range", args: []string{"setyear", "2024", "2023"}, wantErrStr: "end_year:"},
		{name: "create", args: []string{"setyear", "2024", "2025"}, wantOut: "current academic year: 2024/2025"},
		{name: "create another", args: []string{"setyear", "2025", "2026"}, wantOut: "current academic year: 2025/2026"},
		{name: "switch back", args: []string{"setyear", "2024", "2025"}, wantOut: "current academic year: 2024/2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	years, err := env.CatalogSvc.QueryAcademicYears(ctx)
	require.NoError(t, err)
	assert.Len(t, years, 2)

	current, err := env.CatalogSvc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2024, current.StartYear)
}
