package models

// GroupCount is one bucket of a GROUP BY aggregate.
type GroupCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// KindTotals holds one number per record kind.
type KindTotals struct {
	Students int `json:"students"`
	Teachers int `json:"teachers"`
	Parents  int `json:"parents"`
}

// Set stores n under kind.
func (t *KindTotals) Set(kind RecordKind, n int) {
	switch kind {
	case KindStudent:
		t.Students = n
	case KindTeacher:
		t.Teachers = n
	case KindParent:
		t.Parents = n
	}
}

// LocationCount is a per-location row of the overall dashboard tables.
type LocationCount struct {
	Name     string `json:"name"`
	Students int    `json:"student_count"`
	Teachers int    `json:"teacher_count"`
	Parents  int    `json:"parent_count"`
}

// Dashboard is the landing-page overview across all kinds.
type Dashboard struct {
	Totals               KindTotals      `json:"totals"`
	StudentsByGender     []GroupCount    `json:"students_by_gender"`
	StudentsByDisability []GroupCount    `json:"students_by_disability"`
	TeachersByGender     []GroupCount    `json:"teachers_by_gender"`
	TeachersByTraining   []GroupCount    `json:"teachers_by_training"`
	ParentsByGender      []GroupCount    `json:"parents_by_gender"`
	ByRegion             []LocationCount `json:"by_region"`
	ByDistrict           []LocationCount `json:"by_district"`
	BySchool             []LocationCount `json:"by_school"`
}

// Chart is a labelled series ready for a frontend chart.
type Chart struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// KindCharts groups one chart per record kind.
type KindCharts struct {
	Students Chart `json:"students"`
	Teachers Chart `json:"teachers"`
	Parents  Chart `json:"parents"`
}

// AnalysisOptions lists distinct values for the analysis filter dropdowns.
type AnalysisOptions struct {
	Regions         []string `json:"regions"`
	Districts       []string `json:"districts"`
	Schools         []string `json:"schools"`
	Genders         []string `json:"genders"`
	AgeGroups       []string `json:"age_groups"`
	EducationLevels []string `json:"education_levels"`
	Employment      []string `json:"employment"`
}

// Analysis is the filtered cross-kind comparison.
type Analysis struct {
	Filters        SurveyFilter    `json:"filters"`
	Totals         KindTotals      `json:"totals"`
	Reporting      KindTotals      `json:"reporting"`
	GenderCharts   KindCharts      `json:"gender_charts"`
	ReportingChart KindCharts      `json:"reporting_charts"`
	Combined       Chart           `json:"combined_chart"`
	CasesByRegion  []GroupCount    `json:"cases_by_region"`
	ViolenceTypes  []GroupCount    `json:"violence_types"`
	Options        AnalysisOptions `json:"options"`
}

// TrendCategory selects the column a trend is grouped by.
type TrendCategory string

const (
	TrendRegion              TrendCategory = "region"
	TrendDistrict            TrendCategory = "district"
	TrendSchool              TrendCategory = "school"
	TrendGender              TrendCategory = "gender"
	TrendAgeGroup            TrendCategory = "age_group"
	TrendDisability          TrendCategory = "disability"
	TrendViolenceType        TrendCategory = "violence_type"
	TrendPerpetrator         TrendCategory = "perpetrator"
	TrendReporting           TrendCategory = "reporting"
	TrendSystemEffectiveness TrendCategory = "system_effectiveness"
)

// Trend compares per-kind counts over the same labels.
type Trend struct {
	Category TrendCategory `json:"category"`
	Labels   []string      `json:"labels"`
	Students []int         `json:"student_counts"`
	Teachers []int         `json:"teacher_counts"`
	Parents  []int         `json:"parent_counts"`
}

// PercentCount is a grouped count with its share of a population.
type PercentCount struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ViolenceReport summarises students who experienced violence.
type ViolenceReport struct {
	TotalStudents      int            `json:"total_students"`
	ExperiencedTotal   int            `json:"experienced_total"`
	ByGender           []PercentCount `json:"by_gender"`
	ByDisability       []PercentCount `json:"by_disability"`
	ByAgeGroup         []PercentCount `json:"by_age_group"`
	FormsOfViolence    []GroupCount   `json:"forms_of_violence"`
	Perpetrators       []GroupCount   `json:"perpetrators"`
	VulnerablePlaces   []GroupCount   `json:"vulnerable_places"`
	ReportingAwareness []GroupCount   `json:"reporting_effectiveness"`
}

// ExecutiveSummary is the narrative header of the printable report.
type ExecutiveSummary struct {
	Summary         string      `json:"summary"`
	Recommendations []string    `json:"recommendations"`
	TopRegion       *GroupCount `json:"top_region,omitempty"`
	TopSchool       *GroupCount `json:"top_school,omitempty"`
	TopViolence     *GroupCount `json:"top_violence,omitempty"`
	Effective       int         `json:"effective"`
	Ineffective     int         `json:"ineffective"`
}

// PolicyFinding links a survey finding to the policy gap behind it and the
// recommended action. Evidence quotes the current survey figures.
type PolicyFinding struct {
	Finding        string `json:"finding"`
	Gap            string `json:"gap"`
	Recommendation string `json:"recommendation"`
	Evidence       string `json:"evidence"`
}

// PolicyReport is the policy brief derived from the violence report.
type PolicyReport struct {
	Title            string          `json:"title"`
	Organisation     string          `json:"organisation"`
	ExecutiveSummary string          `json:"executive_summary"`
	Findings         []PolicyFinding `json:"findings"`
}

// SurveyRates are the headline indicator percentages.
type SurveyRates struct {
	StudentAwareness float64 `json:"student_awareness_rate"`
	StudentReporting float64 `json:"student_reporting_rate"`
	TeacherReporting float64 `json:"teacher_reporting_rate"`
	ParentReporting  float64 `json:"parent_reporting_rate"`
}
