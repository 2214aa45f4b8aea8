package api

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
)

var riskCols = []string{"id", "name", "description", "category", "impact", "likelihood", "inherent_score",
	"residual_score", "owner_id", "status", "treatment_plan", "mitigation_tasks", "assets_linked",
	"controls_linked", "last_review_date", "next_review_date", "created_at", "updated_at"}

var policyCols = []string{"id", "title", "version", "content_url", "owner_id", "status", "last_review_date",
	"next_review_date", "approval_date", "approved_by", "audience_groups", "controls_linked",
	"attestations", "attestation_frequency_days", "created_at", "updated_at"}

func TestAssetCreate_ForbiddenRole(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.Employee)
	h.expectAuth(u)

	w := h.do(http.MethodPost, "/api/assets", map[string]any{
		"name": "Payroll DB", "type": "Database", "owner": u.ID, "classification": "Confidential",
	}, h.token(u))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	h.verify()
}

func TestAssetCreate_MissingFields(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.RiskManager)
	h.expectAuth(u)

	w := h.do(http.MethodPost, "/api/assets", map[string]any{"name": "Payroll DB"}, h.token(u))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := errorOf(t, w); got != "Please include all required fields: name, type, owner, classification" {
		t.Fatalf("unexpected error %q", got)
	}
	h.verify()
}

func TestAssetCreate_DanglingOwnerWritesNothing(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.SuperAdmin)
	ghost := uuid.New()
	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + ghost.String() + "}").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	w := h.do(http.MethodPost, "/api/assets", map[string]any{
		"name": "Payroll DB", "type": "Database", "owner": ghost, "classification": "Confidential",
	}, h.token(u))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorOf(t, w); got != "Provided owner user ID does not exist" {
		t.Fatalf("unexpected error %q", got)
	}
	h.verify()
}

func TestRiskDelete_Missing(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.RiskManager)
	id := uuid.New()

	h.expectAuth(u)
	h.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM risks WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	w := h.do(http.MethodDelete, "/api/risks/"+id.String(), nil, h.token(u))
	if w.Code != http.StatusNotFound || errorOf(t, w) != "Risk not found" {
		t.Fatalf("missing id: %d %s", w.Code, w.Body.String())
	}

	h.expectAuth(u)
	w = h.do(http.MethodDelete, "/api/risks/not-a-uuid", nil, h.token(u))
	if w.Code != http.StatusNotFound {
		t.Fatalf("malformed id: %d %s", w.Code, w.Body.String())
	}
	h.verify()
}

func TestRiskDelete_PublishesChange(t *testing.T) {
	bus := mesh.NewLocalBus()
	defer bus.Close()
	got := make(chan mesh.RecordChange, 1)
	unsub, err := bus.Subscribe(mesh.TopicRecordChanged, func(_ context.Context, e mesh.Event) {
		if c, err := mesh.DecodeRecordChange(e); err == nil {
			got <- c
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	h := newHarness(t, WithBus(bus))
	u := newUser(grc.SuperAdmin)
	id := uuid.New()
	h.expectAuth(u)
	h.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM risks WHERE id=$1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do(http.MethodDelete, "/api/risks/"+id.String(), nil, h.token(u))
	if w.Code != http.StatusOK || decode(t, w)["message"] != "Risk removed successfully" {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	select {
	case c := <-got:
		if c.Collection != "risks" || c.ID != id || c.Op != mesh.OpDelete || c.Actor != u.ID {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record change published")
	}
	h.verify()
}

func TestRiskUpdate_PartialKeepsFieldsAndRescores(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.RiskManager)
	owner := newUser(grc.ControlOwner)
	id := uuid.New()
	created := testNow.Add(-48 * time.Hour)

	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM risks WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(riskCols).AddRow(
			id.String(), "Data centre outage", "Loss of primary site", "Operational", 3, 4, 12, 12,
			owner.ID.String(), "Open", "Failover", []byte("[]"), []byte("[]"), []byte("[]"),
			nil, nil, created, created))
	h.mock.ExpectExec(regexp.QuoteMeta("UPDATE risks SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, role, department FROM users WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + owner.ID.String() + "}").
		WillReturnRows(userRefRows(owner))

	w := h.do(http.MethodPut, "/api/risks/"+id.String(), map[string]any{"likelihood": 5}, h.token(u))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["name"] != "Data centre outage" || body["description"] != "Loss of primary site" || body["treatment_plan"] != "Failover" {
		t.Fatalf("omitted fields changed: %v", body)
	}
	if body["inherent_score"] != float64(15) || body["residual_score"] != float64(15) {
		t.Fatalf("scores = %v/%v", body["inherent_score"], body["residual_score"])
	}
	ownerRef, _ := body["owner"].(map[string]any)
	if ownerRef["username"] != owner.Username {
		t.Fatalf("owner not resolved: %v", body["owner"])
	}
	h.verify()
}

func TestRiskUpdate_RejectsOutOfRangeImpact(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.RiskManager)
	id := uuid.New()
	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM risks WHERE id=$1")).
		WillReturnRows(sqlmock.NewRows(riskCols).AddRow(
			id.String(), "Outage", "", "Operational", 3, 4, 12, 12,
			u.ID.String(), "Open", "", []byte("[]"), []byte("[]"), []byte("[]"),
			nil, nil, testNow, testNow))

	w := h.do(http.MethodPut, "/api/risks/"+id.String(), map[string]any{"impact": 9}, h.token(u))
	if w.Code != http.StatusBadRequest || errorOf(t, w) != "impact must be between 1 and 5" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	h.verify()
}

func TestEvidenceCreate_StampsUploader(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.Employee)
	h.expectAuth(u)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evidence")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ANY($1::uuid[])")).
		WillReturnRows(userRefRows(u))

	w := h.do(http.MethodPost, "/api/evidence", map[string]any{
		"title": "Firewall review", "file_name": "fw.pdf", "file_path": "/uploads/fw.pdf",
	}, h.token(u))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != grc.EvidencePendingReview || body["version"] != float64(1) {
		t.Fatalf("defaults not applied: %v", body)
	}
	up, _ := body["uploaded_by"].(map[string]any)
	if up["_id"] != u.ID.String() {
		t.Fatalf("uploaded_by = %v", body["uploaded_by"])
	}
	h.verify()
}

func TestMarkReviewed(t *testing.T) {
	approved, pending := grc.EvidenceApproved, grc.EvidencePendingReview
	reviewer := uuid.New()

	e := &database.Evidence{}
	markReviewed(e, &pending, nil, testNow)
	if e.ReviewDate != nil {
		t.Fatal("pending status must not stamp review_date")
	}
	markReviewed(e, &approved, nil, testNow)
	if e.ReviewDate == nil || !e.ReviewDate.Equal(testNow) {
		t.Fatalf("approval did not stamp review_date: %v", e.ReviewDate)
	}
	markReviewed(e, nil, &reviewer, testNow.Add(time.Hour))
	if !e.ReviewDate.Equal(testNow) {
		t.Fatal("existing review_date overwritten")
	}

	e = &database.Evidence{}
	markReviewed(e, nil, &reviewer, testNow)
	if e.ReviewDate == nil {
		t.Fatal("assigning a reviewer did not stamp review_date")
	}
}

func policyRow(id, owner uuid.UUID, attestations string) *sqlmock.Rows {
	return sqlmock.NewRows(policyCols).AddRow(
		id.String(), "Acceptable Use", "2.0", "https://intranet/aup.pdf", owner.String(), "Published",
		nil, testNow.AddDate(1, 0, 0), nil, nil, []byte("[]"), []byte("[]"), []byte(attestations),
		365, testNow, testNow)
}

func TestAttestPolicy_NewThenRenewed(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.Employee)
	owner := newUser(grc.ComplianceOfficer)
	id := uuid.New()

	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM policies WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnRows(policyRow(id, owner.ID, "[]"))
	h.mock.ExpectExec(regexp.QuoteMeta("UPDATE policies SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ANY($1::uuid[])")).
		WillReturnRows(userRefRows(u, owner))

	w := h.do(http.MethodPost, "/api/policies/"+id.String()+"/attest", nil, h.token(u))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["message"] != "Policy attested successfully" {
		t.Fatalf("message = %v", body["message"])
	}
	pol, _ := body["policy"].(map[string]any)
	if atts, _ := pol["attestations"].([]any); len(atts) != 1 {
		t.Fatalf("attestations = %v", pol["attestations"])
	}

	prior := `[{"user":"` + u.ID.String() + `","attested_at":"2026-01-15T09:00:00Z","is_attested":true}]`
	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM policies WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnRows(policyRow(id, owner.ID, prior))
	h.mock.ExpectExec(regexp.QuoteMeta("UPDATE policies SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ANY($1::uuid[])")).
		WillReturnRows(userRefRows(u, owner))

	w = h.do(http.MethodPost, "/api/policies/"+id.String()+"/attest", nil, h.token(u))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body = decode(t, w)
	if body["message"] != "Policy re-attested successfully" {
		t.Fatalf("message = %v", body["message"])
	}
	pol, _ = body["policy"].(map[string]any)
	atts, _ := pol["attestations"].([]any)
	if len(atts) != 1 {
		t.Fatalf("renewal appended: %v", atts)
	}
	h.verify()
}

func TestAttestPolicy_NotFound(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.Employee)
	h.expectAuth(u)
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM policies WHERE id=$1")).
		WillReturnRows(sqlmock.NewRows(policyCols))

	w := h.do(http.MethodPost, "/api/policies/"+uuid.NewString()+"/attest", nil, h.token(u))
	if w.Code != http.StatusNotFound || errorOf(t, w) != "Policy not found" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	h.verify()
}

func TestFrameworkCreate_DuplicateNameVersion(t *testing.T) {
	h := newHarness(t)
	u := newUser(grc.ComplianceOfficer)
	h.expectAuth(u)
	h.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO frameworks")).
		WillReturnError(duplicateKey("frameworks_name_version_key"))

	w := h.do(http.MethodPost, "/api/frameworks", map[string]any{
		"name": "ISO 27001", "version": "2022", "type": "Industry Standard",
	}, h.token(u))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorOf(t, w); got != "Framework with name 'ISO 27001' and version '2022' already exists" {
		t.Fatalf("unexpected error %q", got)
	}
	h.verify()
}
