package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSetClasses(t *testing.T) {
	students, ok := FieldSetFor(KindStudent)
	require.True(t, ok)
	assert.Equal(t, "Students", students.Sheet)
	assert.Equal(t, []string{"region", "district", "school", "gender", "age_group"}, students.Categorical())
	assert.Equal(t, []string{"disability_status", "knowledge_on_violence", "experienced_vac", "reporting_violence"}, students.Boolean())
	assert.Equal(t, []string{"forms_of_violence", "perpetrators", "vulnerable_places"}, students.MultiValue())
	assert.Equal(t, []string{"effectiveness_reporting_system"}, students.Descriptive())

	parents, ok := FieldSetFor(KindParent)
	require.True(t, ok)
	assert.Contains(t, parents.Categorical(), "employment")
	assert.Equal(t, []string{"effectiveness_positive_punishment"}, parents.Descriptive())
	assert.Len(t, parents.Columns(), 17)
}

func TestFieldSetsAreIndependentCopies(t *testing.T) {
	sets := FieldSets()
	require.Len(t, sets, 3)
	sets[0].Table = "changed"

	fs, _ := FieldSetFor(KindStudent)
	assert.Equal(t, "students", fs.Table)
}

func TestParseRecordKind(t *testing.T) {
	for raw, want := range map[string]RecordKind{"students": KindStudent, " Teacher ": KindTeacher, "PARENTS": KindParent} {
		got, ok := ParseRecordKind(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got)
	}
	_, ok := ParseRecordKind("pupils")
	assert.False(t, ok)
	assert.Equal(t, "teachers", KindTeacher.Plural())
}

func TestFieldSetLookups(t *testing.T) {
	teachers, _ := FieldSetFor(KindTeacher)
	assert.True(t, teachers.Has("education_level"))
	assert.False(t, teachers.Has("employment"))
	assert.True(t, teachers.IsBoolean("right_to_discipline_child"))
	assert.False(t, teachers.IsBoolean("training_received"))
}
