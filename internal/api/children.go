package api

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

// Child records are validated one by one before the parent is written; a single bad entry
// rejects the whole request.

type taskInput struct {
	Task          string     `json:"task"`
	DueDate       *grc.Date  `json:"due_date"`
	Status        string     `json:"status"`
	AssignedTo    *uuid.UUID `json:"assigned_to"`
	CompletedDate *grc.Date  `json:"completed_date"`
}

// buildTasks validates task entries and returns them with the assignees they reference.
func buildTasks(field string, in []taskInput) (database.Tasks, []uuid.UUID, error) {
	out := make(database.Tasks, 0, len(in))
	var users []uuid.UUID
	for _, t := range in {
		if t.Task == "" {
			return nil, nil, grc.Validation("Each %s entry requires a task description", field)
		}
		if t.Status == "" {
			t.Status = "Open"
		}
		if err := grc.TaskStatus.Check(t.Status); err != nil {
			return nil, nil, err
		}
		if t.AssignedTo != nil {
			users = append(users, *t.AssignedTo)
		}
		out = append(out, database.Task{
			Task:          t.Task,
			DueDate:       t.DueDate.Ptr(),
			Status:        t.Status,
			AssignedTo:    t.AssignedTo,
			CompletedDate: t.CompletedDate.Ptr(),
		})
	}
	return out, users, nil
}

func taskUsers(ts database.Tasks) []uuid.UUID {
	var out []uuid.UUID
	for _, t := range ts {
		if t.AssignedTo != nil {
			out = append(out, *t.AssignedTo)
		}
	}
	return out
}

type taskView struct {
	Task          string              `json:"task"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	Status        string              `json:"status"`
	AssignedTo    *repository.UserRef `json:"assigned_to"`
	CompletedDate *time.Time          `json:"completed_date,omitempty"`
}

func viewTasks(ts database.Tasks, l *repository.Lookup) []taskView {
	out := make([]taskView, len(ts))
	for i, t := range ts {
		out[i] = taskView{t.Task, t.DueDate, t.Status, l.User(t.AssignedTo), t.CompletedDate}
	}
	return out
}

func checkAuditSteps(steps database.AuditSteps) error {
	for _, s := range steps {
		if s.Step == "" {
			return grc.Validation("Each audit step requires a step description")
		}
	}
	return nil
}

type findingInput struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Severity       string      `json:"severity"`
	Recommendation string      `json:"recommendation"`
	Status         string      `json:"status"`
	AssignedTo     *uuid.UUID  `json:"assigned_to"`
	DueDate        *grc.Date   `json:"due_date"`
	ClosedDate     *grc.Date   `json:"closed_date"`
	LinkedControls []uuid.UUID `json:"linked_controls"`
	LinkedRisks    []uuid.UUID `json:"linked_risks"`
	EvidenceLinked []uuid.UUID `json:"evidence_linked"`
}

func buildFindings(in []findingInput) (database.Findings, error) {
	out := make(database.Findings, 0, len(in))
	for _, f := range in {
		if f.Title == "" || f.Description == "" {
			return nil, grc.Validation("Each finding requires a title and description")
		}
		if f.Severity == "" {
			f.Severity = "Medium"
		}
		if f.Status == "" {
			f.Status = "Open"
		}
		if err := grc.First(grc.FindingSeverity.Check(f.Severity), grc.FindingStatus.Check(f.Status)); err != nil {
			return nil, err
		}
		out = append(out, database.Finding{
			Title:          f.Title,
			Description:    f.Description,
			Severity:       f.Severity,
			Recommendation: f.Recommendation,
			Status:         f.Status,
			AssignedTo:     f.AssignedTo,
			DueDate:        f.DueDate.Ptr(),
			ClosedDate:     f.ClosedDate.Ptr(),
			LinkedControls: f.LinkedControls,
			LinkedRisks:    f.LinkedRisks,
			EvidenceLinked: f.EvidenceLinked,
		})
	}
	return out, nil
}

// findingChecks validates every reference held by findings, in the order the messages name them.
func findingChecks(fs database.Findings) []repository.RefCheck {
	var users, controls, risks, evidence []uuid.UUID
	for _, f := range fs {
		if f.AssignedTo != nil {
			users = append(users, *f.AssignedTo)
		}
		controls = append(controls, f.LinkedControls...)
		risks = append(risks, f.LinkedRisks...)
		evidence = append(evidence, f.EvidenceLinked...)
	}
	return []repository.RefCheck{
		{Collection: repository.Users, IDs: users, Message: "One or more finding assigned_to user IDs not found"},
		{Collection: repository.Controls, IDs: controls, Message: "One or more linked controls in a finding not found"},
		{Collection: repository.Risks, IDs: risks, Message: "One or more linked risks in a finding not found"},
		{Collection: repository.Evidence, IDs: evidence, Message: "One or more linked evidence in a finding not found"},
	}
}

type findingView struct {
	Title          string                   `json:"title"`
	Description    string                   `json:"description"`
	Severity       string                   `json:"severity"`
	Recommendation string                   `json:"recommendation,omitempty"`
	Status         string                   `json:"status"`
	AssignedTo     *repository.UserRef      `json:"assigned_to"`
	DueDate        *time.Time               `json:"due_date,omitempty"`
	ClosedDate     *time.Time               `json:"closed_date,omitempty"`
	LinkedControls []repository.ControlRef  `json:"linked_controls"`
	LinkedRisks    []repository.RiskRef     `json:"linked_risks"`
	EvidenceLinked []repository.EvidenceRef `json:"evidence_linked"`
}

func viewFindings(fs database.Findings, l *repository.Lookup) []findingView {
	out := make([]findingView, len(fs))
	for i, f := range fs {
		out[i] = findingView{
			Title:          f.Title,
			Description:    f.Description,
			Severity:       f.Severity,
			Recommendation: f.Recommendation,
			Status:         f.Status,
			AssignedTo:     l.User(f.AssignedTo),
			DueDate:        f.DueDate,
			ClosedDate:     f.ClosedDate,
			LinkedControls: l.ControlList(f.LinkedControls),
			LinkedRisks:    l.RiskList(f.LinkedRisks),
			EvidenceLinked: l.EvidenceList(f.EvidenceLinked),
		}
	}
	return out
}

func addFindingRefs(fs database.Findings, set repository.RefSet) {
	for _, f := range fs {
		set.AddPtr(repository.Users, f.AssignedTo)
		set.Add(repository.Controls, f.LinkedControls...)
		set.Add(repository.Risks, f.LinkedRisks...)
		set.Add(repository.Evidence, f.EvidenceLinked...)
	}
}

type testResultInput struct {
	TestDate *grc.Date  `json:"test_date"`
	TestType string     `json:"test_type"`
	Outcome  string     `json:"outcome"`
	Comments string     `json:"comments"`
	TestedBy *uuid.UUID `json:"tested_by"`
}

func buildTestResults(in []testResultInput) (database.TestResults, []uuid.UUID, error) {
	out := make(database.TestResults, 0, len(in))
	var users []uuid.UUID
	for _, r := range in {
		if r.TestDate == nil || r.Outcome == "" {
			return nil, nil, grc.Validation("Each test result requires a test_date and outcome")
		}
		if r.TestType == "" {
			r.TestType = "Tabletop"
		}
		if err := grc.First(
			grc.BCMTestType.Check(r.TestType),
			grc.BCMTestOutcome.Check(r.Outcome),
			grc.MaxLen("comments", r.Comments, 1000),
		); err != nil {
			return nil, nil, err
		}
		if r.TestedBy != nil {
			users = append(users, *r.TestedBy)
		}
		out = append(out, database.TestResult{
			TestDate: r.TestDate.Time,
			TestType: r.TestType,
			Outcome:  r.Outcome,
			Comments: r.Comments,
			TestedBy: r.TestedBy,
		})
	}
	return out, users, nil
}

type testResultView struct {
	TestDate time.Time           `json:"test_date"`
	TestType string              `json:"test_type"`
	Outcome  string              `json:"outcome"`
	Comments string              `json:"comments,omitempty"`
	TestedBy *repository.UserRef `json:"tested_by"`
}

func viewTestResults(rs database.TestResults, l *repository.Lookup) []testResultView {
	out := make([]testResultView, len(rs))
	for i, r := range rs {
		out[i] = testResultView{r.TestDate, r.TestType, r.Outcome, r.Comments, l.User(r.TestedBy)}
	}
	return out
}
