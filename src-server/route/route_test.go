package route_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"passgate/src-server/admission"
	"passgate/src-server/jwt"
	"passgate/src-server/model"
	"passgate/src-server/route"
	"passgate/src-server/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSecret = "testsecret"

type testServer struct {
	t       *testing.T
	handler http.Handler
	db      *bun.DB
	tokens  map[model.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	rawDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	rawDB.SetMaxOpenConns(1)
	bundb := bun.NewDB(rawDB, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	if err := model.CreateSchema(ctx, bundb); err != nil {
		t.Fatal(err)
	}

	config, err := utils.ParseConfig(func(k string) string {
		if k == "JWT_SECRET" {
			return testSecret
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	as := &utils.AppState{Config: config, RawDB: rawDB, BunDB: bundb}

	s := &testServer{
		t:       t,
		handler: route.NewHandler(as, admission.New(bundb)),
		db:      bundb,
		tokens:  make(map[model.Role]string),
	}
	for _, role := range []model.Role{model.ROLE_USER, model.ROLE_STAFF, model.ROLE_ADMIN} {
		user := &model.User{ID: string(role) + "-1", Role: role}
		if err := user.Upsert(ctx, bundb); err != nil {
			t.Fatal(err)
		}
		token, err := jwt.Encode(user.ID, testSecret, time.Hour, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		s.tokens[role] = token
	}
	return s
}

// do sends a request as role ("" for anonymous) and decodes the JSON response into out.
func (s *testServer) do(method, path string, role model.Role, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			s.t.Fatalf("%s %s: can't decode response: %v", method, path, err)
		}
	}
	return rec.Code
}

type passResp struct {
	Pass struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
		State   string `json:"state"`
	} `json:"pass"`
	QRData string `json:"qrData"`
}

type scanResp struct {
	Result  string `json:"result"`
	Reason  string `json:"reason"`
	EntryID string `json:"entryId"`
}

func TestPassAndScanFlow(t *testing.T) {
	s := newTestServer(t)

	var registered passResp
	if code := s.do("POST", "/api/passes/register", model.ROLE_USER, map[string]string{"eventId": "seminar-a"}, &registered); code != http.StatusCreated {
		t.Fatalf("register: %d", code)
	}
	if registered.QRData == "" || registered.Pass.Version != 1 {
		t.Fatalf("register response = %+v", registered)
	}
	if code := s.do("POST", "/api/passes/register", model.ROLE_USER, map[string]string{"eventId": "seminar-a"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate register: %d, want 409", code)
	}

	scan := func(token string, wantCode int, wantResult, wantReason string) scanResp {
		t.Helper()
		var resp scanResp
		code := s.do("POST", "/api/attendance/scan", model.ROLE_STAFF, map[string]string{"qrToken": token}, &resp)
		if code != wantCode || resp.Result != wantResult || resp.Reason != wantReason {
			t.Fatalf("scan: %d %+v, want %d %s/%s", code, resp, wantCode, wantResult, wantReason)
		}
		return resp
	}

	oldToken := registered.QRData
	scan(oldToken, http.StatusOK, "granted", "")
	denied := scan(oldToken, http.StatusConflict, "denied", "already_used")

	var reissued passResp
	if code := s.do("PUT", "/api/passes/"+registered.Pass.ID+"/reissue", model.ROLE_STAFF, nil, &reissued); code != http.StatusOK {
		t.Fatalf("reissue: %d", code)
	}
	if reissued.QRData == oldToken || reissued.Pass.Version != 2 {
		t.Fatalf("reissue response = %+v", reissued)
	}
	scan(oldToken, http.StatusNotFound, "denied", "invalid_token")
	scan(reissued.QRData, http.StatusOK, "granted", "")

	if code := s.do("POST", "/api/passes/"+registered.Pass.ID+"/revoke", model.ROLE_STAFF, nil, nil); code != http.StatusForbidden {
		t.Errorf("staff revoke: %d, want 403", code)
	}
	if code := s.do("POST", "/api/passes/"+registered.Pass.ID+"/revoke", model.ROLE_ADMIN, nil, nil); code != http.StatusOK {
		t.Fatalf("revoke: %d", code)
	}
	scan(reissued.QRData, http.StatusForbidden, "denied", "revoked")

	var summary admission.Summary
	if code := s.do("GET", "/api/attendance/summary?eventId=seminar-a", model.ROLE_USER, nil, &summary); code != http.StatusOK {
		t.Fatalf("summary: %d", code)
	}
	// the invalid_token denial has no event reference
	want := admission.Summary{TotalRegistrations: 1, CheckIns: 1, Revoked: 1, Denials: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}

	var entry struct {
		Status  string `json:"status"`
		Deleted bool   `json:"deleted"`
		Audit   []struct {
			By string `json:"by"`
		} `json:"audit"`
	}
	if code := s.do("PUT", "/api/attendance/logs/"+denied.EntryID, model.ROLE_ADMIN, map[string]string{"status": "checked-in", "note": "door 2"}, &entry); code != http.StatusOK {
		t.Fatalf("amend: %d", code)
	}
	if entry.Status != "checked-in" || len(entry.Audit) != 1 || entry.Audit[0].By != "admin-1" {
		t.Errorf("amended entry = %+v", entry)
	}
	if code := s.do("DELETE", "/api/attendance/logs/"+denied.EntryID, model.ROLE_ADMIN, nil, &entry); code != http.StatusOK {
		t.Fatalf("soft delete: %d", code)
	}
	if !entry.Deleted || len(entry.Audit) != 2 {
		t.Errorf("deleted entry = %+v", entry)
	}

	var list struct {
		Count int `json:"count"`
	}
	if code := s.do("GET", "/api/attendance/events/seminar-a", model.ROLE_STAFF, nil, &list); code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	if list.Count != 3 {
		t.Errorf("visible entries = %d, want 3", list.Count)
	}
}

func TestAuthGates(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		method, path string
		role         model.Role
		want         int
	}{
		{"POST", "/api/attendance/scan", "", http.StatusUnauthorized},
		{"POST", "/api/attendance/scan", model.ROLE_USER, http.StatusForbidden},
		{"GET", "/api/passes/some-id", model.ROLE_USER, http.StatusForbidden},
		{"GET", "/api/passes/some-id", model.ROLE_STAFF, http.StatusNotFound},
		{"PUT", "/api/passes/some-id/reissue", model.ROLE_ADMIN, http.StatusNotFound},
		{"POST", "/api/passes/some-id/revoke", model.ROLE_ADMIN, http.StatusNotFound},
		{"DELETE", "/api/attendance/logs/some-id", model.ROLE_STAFF, http.StatusForbidden},
		{"GET", "/api/attendance/logs/some-id", model.ROLE_ADMIN, http.StatusNotFound},
		{"GET", "/api/attendance/summary", model.ROLE_USER, http.StatusBadRequest},
	}
	for _, c := range cases {
		if code := s.do(c.method, c.path, c.role, nil, nil); code != c.want {
			t.Errorf("%s %s as %q: %d, want %d", c.method, c.path, c.role, code, c.want)
		}
	}

	req := httptest.NewRequest("GET", "/api/passes/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d, want 401", rec.Code)
	}
}

func TestScanRequiresToken(t *testing.T) {
	s := newTestServer(t)
	if code := s.do("POST", "/api/attendance/scan", model.ROLE_STAFF, map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty scan: %d, want 400", code)
	}
	var resp scanResp
	if code := s.do("POST", "/api/attendance/scan", model.ROLE_STAFF, map[string]string{"qrPayload": "unknown"}, &resp); code != http.StatusNotFound || resp.Reason != "invalid_token" {
		t.Errorf("legacy field scan: %d %+v", code, resp)
	}
}

func TestMyPasses(t *testing.T) {
	s := newTestServer(t)
	for _, event := range []string{"a", "b"} {
		if code := s.do("POST", "/api/passes/register", model.ROLE_USER, map[string]string{"eventId": event}, nil); code != http.StatusCreated {
			t.Fatalf("register %s: %d", event, code)
		}
	}
	var passes []struct {
		HolderID string `json:"holderId"`
	}
	if code := s.do("GET", "/api/passes/me", model.ROLE_USER, nil, &passes); code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	if len(passes) != 2 || passes[0].HolderID != "user-1" {
		t.Errorf("passes = %+v", passes)
	}
}

func TestScanLedgerFailure(t *testing.T) {
	s := newTestServer(t)

	var registered passResp
	if code := s.do("POST", "/api/passes/register", model.ROLE_USER, map[string]string{"eventId": "seminar-a"}, &registered); code != http.StatusCreated {
		t.Fatalf("register: %d", code)
	}
	if _, err := s.db.NewDropTable().Model((*model.AttendanceEntry)(nil)).Exec(context.Background()); err != nil {
		t.Fatal(err)
	}

	var resp struct {
		Result  string `json:"result"`
		EntryID string `json:"entryId"`
		Message string `json:"message"`
	}
	code := s.do("POST", "/api/attendance/scan", model.ROLE_STAFF, map[string]string{"qrToken": registered.QRData}, &resp)
	if code != http.StatusInternalServerError {
		t.Errorf("scan: %d, want 500", code)
	}
	if resp.Result != "granted" || resp.EntryID != "" || resp.Message == "" {
		t.Errorf("scan response = %+v, want granted with a message and no entry", resp)
	}
}
