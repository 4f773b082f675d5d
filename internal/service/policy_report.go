package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/pkg/export"
)

const (
	policyTitle        = "Policy Report on Addressing Violence in Schools"
	policyOrganisation = "FAWE - Tanzania"
	policySummary      = "School violence undermines student safety, learning outcomes, and Tanzania's progress toward SDG 4 (Quality Education). " +
		"Data collected from students reveals patterns of violence by gender, age, perpetrators, and reporting effectiveness. " +
		"This report formalizes these findings into actionable policy recommendations to strengthen child protection systems in schools."
	noResponses = "No responses recorded."
)

// Order matters: policyEvidence fills Evidence by index.
var policyFindings = []models.PolicyFinding{
	{
		Finding:        "Boys and girls experience different forms of violence",
		Gap:            "Policies don't address gender-specific vulnerabilities",
		Recommendation: "Develop gender-responsive child protection policies; train teachers on gender-sensitive approaches",
	},
	{
		Finding:        "Younger students are disproportionately exposed",
		Gap:            "Lack of age-specific safeguards in school codes of conduct",
		Recommendation: "Introduce age-appropriate protective measures; strengthen supervision for lower grades",
	},
	{
		Finding:        "Teachers and parents frequently identified as perpetrators",
		Gap:            "Weak accountability mechanisms for authority figures",
		Recommendation: "Enforce strict codes of conduct; establish disciplinary committees; mandatory reporting of incidents",
	},
	{
		Finding:        "Certain school environments consistently reported as unsafe",
		Gap:            "No systematic monitoring of vulnerable places",
		Recommendation: "Conduct regular safety audits; redesign school spaces; integrate safe-school standards",
	},
	{
		Finding:        "Students lack trust in reporting systems",
		Gap:            "Reporting mechanisms are underused and lack confidentiality",
		Recommendation: "Establish anonymous reporting channels; strengthen child helplines; ensure follow-up and feedback",
	},
	{
		Finding:        "Survivors lack adequate support services",
		Gap:            "Limited counseling and psychosocial support in schools",
		Recommendation: "Provide school-based counseling; link survivors to community services; train peer support groups",
	},
}

// Policy builds the policy brief, quoting the current violence report as
// evidence for each finding.
func (s *ViolenceReportService) Policy(ctx context.Context) (*models.PolicyReport, error) {
	report, _, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return policyReport(report, summary), nil
}

// PolicyExport renders the policy brief.
func (s *ViolenceReportService) PolicyExport(ctx context.Context, format export.Format) (*ExportFile, error) {
	policy, err := s.Policy(ctx)
	if err != nil {
		return nil, err
	}
	return renderFile(policyDocument(policy), format, "policy_report")
}

func policyReport(report *models.ViolenceReport, summary *models.ExecutiveSummary) *models.PolicyReport {
	evidence := policyEvidence(report, summary)
	findings := make([]models.PolicyFinding, len(policyFindings))
	copy(findings, policyFindings)
	for i := range findings {
		findings[i].Evidence = evidence[i]
	}
	return &models.PolicyReport{
		Title:            policyTitle,
		Organisation:     policyOrganisation,
		ExecutiveSummary: policySummary,
		Findings:         findings,
	}
}

func policyEvidence(report *models.ViolenceReport, summary *models.ExecutiveSummary) []string {
	return []string{
		shares("Experienced violence by gender", report.ByGender),
		shares("Experienced violence by age group", report.ByAgeGroup),
		mentions("Most cited perpetrator", firstKnown(report.Perpetrators)),
		mentions("Most cited unsafe place", firstKnown(report.VulnerablePlaces)),
		fmt.Sprintf("%d effective and %d ineffective reporting responses.", summary.Effective, summary.Ineffective),
		fmt.Sprintf("%d of %d surveyed students experienced violence.", report.ExperiencedTotal, report.TotalStudents),
	}
}

func shares(label string, rows []models.PercentCount) string {
	if len(rows) == 0 {
		return noResponses
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("%s %.2f%%", r.Label, r.Percentage))
	}
	return label + ": " + strings.Join(parts, ", ") + "."
}

func firstKnown(groups []models.GroupCount) *models.GroupCount {
	for i := range groups {
		if groups[i].Label != unknownLabel {
			return &groups[i]
		}
	}
	return nil
}

func mentions(label string, g *models.GroupCount) string {
	if g == nil {
		return noResponses
	}
	return fmt.Sprintf("%s: %s (%d mentions).", label, g.Label, g.Count)
}

func policyDocument(p *models.PolicyReport) export.Report {
	table := export.Dataset{
		Headers: []string{"Findings", "Policy Gaps", "Recommendations", "Evidence"},
		Rows:    make([]map[string]string, 0, len(p.Findings)),
	}
	for _, f := range p.Findings {
		table.Rows = append(table.Rows, map[string]string{
			"Findings":        f.Finding,
			"Policy Gaps":     f.Gap,
			"Recommendations": f.Recommendation,
			"Evidence":        f.Evidence,
		})
	}
	return export.Report{
		Title: p.Organisation + ": " + p.Title,
		Sections: []export.Section{
			{Heading: "Executive Summary", Data: export.Dataset{
				Headers: []string{"Summary"},
				Rows:    []map[string]string{{"Summary": p.ExecutiveSummary}},
			}},
			{Heading: "Evidence, Policy and Action", Data: table},
		},
	}
}
