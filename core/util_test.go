package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Ada", CleanString("  Ada \t"))
	assert.Equal(t, "ada@test.cd", CleanString(" ADA@Test.cd ", true))
	assert.Equal(t, "STU-0A1B2C", CleanUpperString(" stu-0a1b2c "))
}

func TestHumanizeField(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{field: "", want: ""},
		{field: "email", want: "Email"},
		{field: "firstName", want: "First name"},
		{field: "classLevel", want: "Class level"},
		{field: "uniqueId", want: "Unique id"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanizeField(tt.field))
		})
	}
}
