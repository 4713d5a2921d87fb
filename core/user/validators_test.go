package user

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
)

type fakeRepo struct {
	emails map[string]bool
}

func (r *fakeRepo) CheckEmailUniqueness(_ context.Context, email string, _ ...int64) error {
	if r.emails[email] {
		return ErrEmailExists
	}
	return nil
}
func (r *fakeRepo) CreateUser(_ context.Context, usr User) (User, error) { return usr, nil }
func (r *fakeRepo) GetUser(_ context.Context, _ GetFilter) (User, error) { return User{}, ErrNotFound }
func (r *fakeRepo) QueryUsers(_ context.Context, _ *QueryFilter) ([]User, error) {
	return nil, nil
}
func (r *fakeRepo) UpdateUser(_ context.Context, usr User) (User, error) { return usr, nil }

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		attrs   []string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcd12345", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcd1234!", wantTag: pwdComplexityTag},
		{name: "similar to email", pwd: "Jdoe@mail.com1", attrs: []string{"jdoe@mail.com"}, wantTag: pwdAttrSimTag},
		{name: "valid", pwd: "Str0ng!Pass", attrs: []string{"Jane Doe", "jane@school.org"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantTag, CheckPassword(tc.pwd, tc.attrs...))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	svc := NewService(&fakeRepo{emails: map[string]bool{"taken@school.org": true}})
	ctx := context.Background()

	t.Run("invalid password", func(t *testing.T) {
		nu := NewUser{Name: "Jane", Email: "jane@school.org", Password: "password", PasswordConfirm: "password"}
		err := nu.Validate(ctx, validate, svc)
		require.Error(t, err)
		verrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		fldErrs := core.TranslateValidationErrors(verrs, translator)
		assert.Equal(t, pwdComplexityText, fldErrs["password"])
	})

	t.Run("email taken", func(t *testing.T) {
		nu := NewUser{Name: "Jane", Email: " Taken@School.org ", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass"}
		err := nu.Validate(ctx, validate, svc)
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
		assert.Equal(t, "taken@school.org", nu.Email)
	})

	t.Run("valid", func(t *testing.T) {
		nu := NewUser{Name: "Jane", Email: "jane@school.org", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass"}
		require.NoError(t, nu.Validate(ctx, validate, svc))

		usr, err := svc.Create(ctx, nu)
		require.NoError(t, err)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("Str0ng!Pass"))
	})
}
