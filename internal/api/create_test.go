package api

import (
	"net/http"
	"reflect"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
)

var frameworkCols = []string{"id", "name", "version", "type", "description", "source",
	"compliance_requirements", "controls_mapped", "created_at", "updated_at"}

// expectCount answers one reference check on collection for exactly id.
func (h *harness) expectCount(collection string, id uuid.UUID, n int) {
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM "+collection+" WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + id.String() + "}").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
}

func (h *harness) expectUserRefs(users ...*database.User) {
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, role, department FROM users WHERE id = ANY($1::uuid[])")).
		WillReturnRows(userRefRows(users...))
}

func TestAuditCreate_StatusAlwaysPlanned(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.AuditManager)
	lead := newUser(grc.AuditManager)
	h.expectAuth(u)
	h.expectCount("users", lead.ID, 1)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audits")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.expectUserRefs(lead)

	w := h.do(http.MethodPost, "/api/audits", map[string]any{
		"name": "ISO surveillance", "scope": "ISMS", "lead_auditor": lead.ID, "status": "Closed",
		"planned_start_date": "2026-04-01", "planned_end_date": "2026-04-10",
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != grc.AuditPlanned || body["type"] != "Internal" {
		t.Fatalf("defaults not applied: status=%v type=%v", body["status"], body["type"])
	}
	leadRef, _ := body["lead_auditor"].(map[string]any)
	if leadRef["_id"] != lead.ID.String() {
		t.Fatalf("lead_auditor = %v", body["lead_auditor"])
	}
	h.verify()
}

func TestAuditCreate_DanglingFindingEvidenceWritesNothing(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.SuperAdmin)
	lead := newUser(grc.AuditManager)
	ghost := uuid.New()
	h.expectAuth(u)
	h.expectCount("users", lead.ID, 1)
	h.expectCount("evidence", ghost, 0)

	w := h.do(http.MethodPost, "/api/audits", map[string]any{
		"name": "SOC 2", "scope": "Production", "lead_auditor": lead.ID,
		"planned_start_date": "2026-04-01", "planned_end_date": "2026-04-10",
		"findings": []map[string]any{{
			"title": "Stale access", "description": "Leavers not removed", "evidence_linked": []uuid.UUID{ghost},
		}},
	}, h.token(u))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorOf(t, w); got != "One or more linked evidence in a finding not found" {
		t.Fatalf("unexpected error %q", got)
	}
	// no INSERT expectation: an unmet Exec would fail verify
	h.verify()
}

func TestPolicyCreate_DefaultsToDraft(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.ComplianceOfficer)
	h.expectAuth(u)
	h.expectCount("users", u.ID, 1)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO policies")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.expectUserRefs(u)

	w := h.do(http.MethodPost, "/api/policies", map[string]any{
		"title": "Acceptable Use", "version": "1.0", "content_url": "https://intranet/aup.pdf",
		"owner": u.ID, "next_review_date": "2027-03-01",
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != grc.PolicyDraft {
		t.Fatalf("status = %v", body["status"])
	}
	if atts, ok := body["attestations"].([]any); !ok || len(atts) != 0 {
		t.Fatalf("attestations = %v", body["attestations"])
	}
	h.verify()
}

func TestBCMCreate_Status(t *testing.T) {
	for _, tc := range []struct {
		name string
		sent string
		want string
	}{
		{"omitted", "", grc.BCMDraft},
		{"supplied", "Active", "Active"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			u := newUser(grc.RiskManager)
			h.expectAuth(u)
			h.expectCount("users", u.ID, 1)
			h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bcm_plans")).
				WillReturnResult(sqlmock.NewResult(0, 1))
			h.expectUserRefs(u)

			payload := map[string]any{"plan_name": "Site failover", "owner": u.ID}
			if tc.sent != "" {
				payload["status"] = tc.sent
			}
			w := h.do(http.MethodPost, "/api/bcm", payload, h.token(u))
			if w.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
			}
			body := decode(t, w)
			if body["status"] != tc.want || body["version"] != "1.0" {
				t.Fatalf("status=%v version=%v", body["status"], body["version"])
			}
			h.verify()
		})
	}
}

func TestControlCreate(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.ControlOwner)
	h.expectAuth(u)
	h.expectCount("users", u.ID, 1)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO controls")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.expectUserRefs(u)

	w := h.do(http.MethodPost, "/api/controls", map[string]any{
		"name": "MFA on VPN", "description": "All remote access requires a second factor", "owner": u.ID,
		"effectiveness_score": 80,
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "Not Implemented" || body["effectiveness_score"] != float64(80) {
		t.Fatalf("unexpected control %v", body)
	}
	owner, _ := body["owner"].(map[string]any)
	if owner["username"] != u.Username {
		t.Fatalf("owner not resolved: %v", body["owner"])
	}
	h.verify()
}

func TestFrameworkCreate_ThenGetMatches(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.ComplianceOfficer)
	h.expectAuth(u)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO frameworks")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do(http.MethodPost, "/api/frameworks", map[string]any{
		"name": "NIST CSF", "version": "2.0", "type": "Industry Standard", "source": "NIST",
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	id, err := uuid.Parse(created["_id"].(string))
	if err != nil {
		t.Fatalf("bad id %v", created["_id"])
	}

	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM frameworks WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(frameworkCols).AddRow(
			id.String(), "NIST CSF", "2.0", "Industry Standard", "", "NIST", "", []byte("[]"), testNow, testNow))

	w = h.do(http.MethodGet, "/api/frameworks/"+id.String(), nil, h.token(u))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w); !reflect.DeepEqual(got, created) {
		t.Fatalf("get differs from create:\n got  %v\n want %v", got, created)
	}
	h.verify()
}

func TestRiskCreate_ScoresFromImpactAndLikelihood(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.RiskManager)
	h.expectAuth(u)
	h.expectCount("users", u.ID, 1)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO risks")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.expectUserRefs(u)

	w := h.do(http.MethodPost, "/api/risks", map[string]any{
		"name": "Ransomware", "impact": 4, "likelihood": 3, "owner": u.ID,
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["inherent_score"] != float64(12) || body["residual_score"] != float64(12) {
		t.Fatalf("scores = %v/%v", body["inherent_score"], body["residual_score"])
	}
	if body["status"] != "Open" || body["category"] != "Operational" {
		t.Fatalf("defaults not applied: %v", body)
	}
	h.verify()
}
