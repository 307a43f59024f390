package account

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/learnlink/backend/core"
)

func TestNewStudent_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	t.Run("cleans input", func(t *testing.T) {
		ns := NewStudent{
			FirstName:  " Ada ",
			LastName:   "Lovelace ",
			Email:      " ADA@Test.cd",
			Password:   "secret1",
			ClassLevel: " ss1 ",
			Role:       " Student",
			Identifier: " stu-0a0b0c",
		}
		assert.NoError(t, ns.Validate(validate, translator))
		assert.Equal(t, NewStudent{
			FirstName:  "Ada",
			LastName:   "Lovelace",
			Email:      "ada@test.cd",
			Password:   "secret1",
			ClassLevel: "SS1",
			Role:       RoleStudent,
			Identifier: "STU-0A0B0C",
		}, ns)
	})

	t.Run("classLevel ignored for other roles", func(t *testing.T) {
		ns := NewStudent{FirstName: "A", LastName: "B", Email: "a@b.cd", Password: "secret1", ClassLevel: "JSS9", Role: "teacher"}
		err := ns.Validate(validate, translator)
		assert.Empty(t, ns.ClassLevel)

		verr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) {
			assert.Equal(t, map[string]string{"type": studentOnlyText}, verr.Fields)
		}
	})
}

func TestPassword_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	tests := []struct {
		pwd  string
		want string
	}{
		{pwd: "secret1"},
		{pwd: "123abc"},
		{pwd: "", want: "Password is required."},
		{pwd: "abc", want: pwdMinLenText + " " + pwdCharsText},
		{pwd: "a1", want: pwdMinLenText},
		{pwd: "123456", want: pwdCharsText},
		{pwd: "abcdef", want: pwdCharsText},
		{pwd: "a1" + strings.Repeat("x", 70)},
		{pwd: "a1" + strings.Repeat("x", 80), want: pwdMaxLenText},
		{pwd: strings.Repeat("x", 80), want: pwdMaxLenText + " " + pwdCharsText},
		{pwd: "a1" + strings.Repeat("é", 36), want: pwdMaxLenText}, // 38 characters, 74 bytes
	}
	for _, tt := range tests {
		t.Run(tt.pwd, func(t *testing.T) {
			err := NewPassword{Password: tt.pwd}.Validate(validate, translator)
			if tt.want == "" {
				assert.NoError(t, err)
			} else if verr, ok := err.(*core.ValidationError); assert.True(t, ok) {
				assert.Equal(t, map[string]string{"password": tt.want}, verr.Fields)
			}

			err = PasswordChange{Password: tt.pwd}.Validate(validate, translator)
			if tt.want == "" {
				assert.NoError(t, err)
			} else if verr, ok := err.(*core.ValidationError); assert.True(t, ok) {
				assert.Equal(t, map[string]string{"password": tt.want}, verr.Fields)
			}
		})
	}
}
