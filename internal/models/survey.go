package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RecordKind identifies one of the three independent survey record stores.
type RecordKind string

const (
	KindStudent RecordKind = "student"
	KindTeacher RecordKind = "teacher"
	KindParent  RecordKind = "parent"
)

// FieldClass is the normalization applied to a survey column.
type FieldClass int

const (
	ClassCategorical FieldClass = iota
	ClassBoolean
	ClassMultiValue
	ClassDescriptive
)

// IDField is the external identifier column shared by every kind.
const IDField = "id_number"

// Field is one persisted survey column.
type Field struct {
	Name  string
	Class FieldClass
}

// FieldSet describes a record kind: its table, the workbook sheet it is
// imported from and its columns in storage order.
type FieldSet struct {
	Kind   RecordKind
	Table  string
	Sheet  string
	Fields []Field
}

var fieldSets = []FieldSet{
	{
		Kind:  KindStudent,
		Table: "students",
		Sheet: "Students",
		Fields: []Field{
			{"region", ClassCategorical},
			{"district", ClassCategorical},
			{"school", ClassCategorical},
			{"gender", ClassCategorical},
			{"age_group", ClassCategorical},
			{"disability_status", ClassBoolean},
			{"knowledge_on_violence", ClassBoolean},
			{"experienced_vac", ClassBoolean},
			{"forms_of_violence", ClassMultiValue},
			{"perpetrators", ClassMultiValue},
			{"vulnerable_places", ClassMultiValue},
			{"reporting_violence", ClassBoolean},
			{"effectiveness_reporting_system", ClassDescriptive},
		},
	},
	{
		Kind:  KindTeacher,
		Table: "teachers",
		Sheet: "Teachers",
		Fields: []Field{
			{"region", ClassCategorical},
			{"district", ClassCategorical},
			{"school", ClassCategorical},
			{"gender", ClassCategorical},
			{"age_group", ClassCategorical},
			{"marital_status", ClassCategorical},
			{"education_level", ClassCategorical},
			{"forms_of_violence", ClassMultiValue},
			{"reporting_violence", ClassBoolean},
			{"vulnerable_places", ClassMultiValue},
			{"right_to_discipline_child", ClassBoolean},
			{"effective_handling_vac", ClassDescriptive},
			{"training_received", ClassDescriptive},
		},
	},
	{
		Kind:  KindParent,
		Table: "parents",
		Sheet: "Parents",
		Fields: []Field{
			{"region", ClassCategorical},
			{"district", ClassCategorical},
			{"school", ClassCategorical},
			{"gender", ClassCategorical},
			{"age_group", ClassCategorical},
			{"marital_status", ClassCategorical},
			{"education_level", ClassCategorical},
			{"forms_of_violence", ClassMultiValue},
			{"reporting_violence", ClassBoolean},
			{"vulnerable_places", ClassMultiValue},
			{"employment", ClassCategorical},
			{"physical_punishment", ClassBoolean},
			{"believe_in_child_punishment", ClassBoolean},
			{"effectiveness_positive_punishment", ClassDescriptive},
			{"child_comforting", ClassBoolean},
			{"impose_rules_to_child", ClassBoolean},
			{"set_rules_with_child", ClassBoolean},
		},
	},
}

// FieldSets returns the field sets in import order (students, teachers, parents).
func FieldSets() []FieldSet {
	out := make([]FieldSet, len(fieldSets))
	copy(out, fieldSets)
	return out
}

// FieldSetFor returns the field set of kind.
func FieldSetFor(kind RecordKind) (FieldSet, bool) {
	for _, fs := range fieldSets {
		if fs.Kind == kind {
			return fs, true
		}
	}
	return FieldSet{}, false
}

// ParseRecordKind accepts singular or plural kind names in any case.
func ParseRecordKind(raw string) (RecordKind, bool) {
	k := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s")
	switch RecordKind(k) {
	case KindStudent, KindTeacher, KindParent:
		return RecordKind(k), true
	}
	return "", false
}

// Plural returns the table-style plural of the kind, e.g. "students".
func (k RecordKind) Plural() string {
	return string(k) + "s"
}

// Columns lists persisted column names, excluding the identifier, in storage order.
func (fs FieldSet) Columns() []string {
	cols := make([]string, len(fs.Fields))
	for i, f := range fs.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Names returns the fields of class c in storage order.
func (fs FieldSet) Names(c FieldClass) []string {
	var out []string
	for _, f := range fs.Fields {
		if f.Class == c {
			out = append(out, f.Name)
		}
	}
	return out
}

func (fs FieldSet) Categorical() []string { return fs.Names(ClassCategorical) }
func (fs FieldSet) Boolean() []string     { return fs.Names(ClassBoolean) }
func (fs FieldSet) MultiValue() []string  { return fs.Names(ClassMultiValue) }
func (fs FieldSet) Descriptive() []string { return fs.Names(ClassDescriptive) }

// Has reports whether column is part of the field set.
func (fs FieldSet) Has(column string) bool {
	for _, f := range fs.Fields {
		if f.Name == column {
			return true
		}
	}
	return false
}

// IsBoolean reports whether column is a boolean field of the set.
func (fs FieldSet) IsBoolean(column string) bool {
	for _, f := range fs.Fields {
		if f.Name == column {
			return f.Class == ClassBoolean
		}
	}
	return false
}

// SurveyRecord is a kind-agnostic survey row. Text holds every string field,
// Flags every boolean field.
type SurveyRecord struct {
	ID        string
	Kind      RecordKind
	IDNumber  string
	Text      map[string]string
	Flags     map[string]bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSurveyRecord allocates an empty record of kind.
func NewSurveyRecord(kind RecordKind, idNumber string) *SurveyRecord {
	return &SurveyRecord{
		Kind:     kind,
		IDNumber: idNumber,
		Text:     make(map[string]string),
		Flags:    make(map[string]bool),
	}
}

// Value returns the stored value for column as a driver-friendly value.
func (r *SurveyRecord) Value(fs FieldSet, column string) interface{} {
	if fs.IsBoolean(column) {
		return r.Flags[column]
	}
	return r.Text[column]
}

// Display renders column as a string, booleans as "Yes"/"No".
func (r *SurveyRecord) Display(fs FieldSet, column string) string {
	if column == IDField {
		return r.IDNumber
	}
	if fs.IsBoolean(column) {
		if r.Flags[column] {
			return "Yes"
		}
		return "No"
	}
	return r.Text[column]
}

// MarshalJSON flattens the record into a single object keyed by column.
func (r SurveyRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Text)+len(r.Flags)+5)
	for k, v := range r.Text {
		out[k] = v
	}
	for k, v := range r.Flags {
		out[k] = v
	}
	out["id"] = r.ID
	out["kind"] = r.Kind
	out[IDField] = r.IDNumber
	if !r.CreatedAt.IsZero() {
		out["created_at"] = r.CreatedAt
		out["updated_at"] = r.UpdatedAt
	}
	return json.Marshal(out)
}

// SurveyFilter narrows survey listings and aggregates. Empty strings are ignored.
type SurveyFilter struct {
	Region         string `json:"region,omitempty"`
	District       string `json:"district,omitempty"`
	School         string `json:"school,omitempty"`
	Gender         string `json:"gender,omitempty"`
	AgeGroup       string `json:"age_group,omitempty"`
	Disability     *bool  `json:"disability_status,omitempty"`
	EducationLevel string `json:"education_level,omitempty"`
	Employment     string `json:"employment,omitempty"`
	Search         string `json:"search,omitempty"`
	Page           int    `json:"-"`
	PageSize       int    `json:"-"`
}

// CacheKey renders the filter deterministically for cache keys.
func (f SurveyFilter) CacheKey() string {
	disability := ""
	if f.Disability != nil {
		if *f.Disability {
			disability = "true"
		} else {
			disability = "false"
		}
	}
	parts := []string{f.Region, f.District, f.School, strings.ToLower(f.Gender), f.AgeGroup, disability, f.EducationLevel, f.Employment}
	return strings.Join(parts, "|")
}
