package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/recommend"
	"github.com/synapselabs/synapse-api/internal/report"
	"github.com/synapselabs/synapse-api/internal/service/syncservice"
	"github.com/synapselabs/synapse-api/internal/store"
)

type fakeSync struct {
	pushResp  *syncservice.PushResponse
	pushErr   error
	pullResp  *syncservice.PullResponse
	pullErr   error
	gotUser   string
	gotCP     *time.Time
	gotPushes int
}

func (f *fakeSync) Push(_ context.Context, userID string, _ syncservice.PushRequest) (*syncservice.PushResponse, error) {
	f.gotUser = userID
	f.gotPushes++
	return f.pushResp, f.pushErr
}

func (f *fakeSync) Pull(_ context.Context, userID string, checkpoint *time.Time) (*syncservice.PullResponse, error) {
	f.gotUser = userID
	f.gotCP = checkpoint
	return f.pullResp, f.pullErr
}

type fakeRecommender struct {
	resp *recommend.Response
	err  error
	gotK int
}

func (f *fakeRecommender) Recommend(_ context.Context, _, _ string, k int) (*recommend.Response, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < 1 || k > 50 {
		return nil, recommend.ErrInvalidK
	}
	return f.resp, nil
}

type fakeReporter struct {
	resp *report.Response
	err  error
}

func (f *fakeReporter) Weekly(_ context.Context, _, weekKey string, _ bool) (*report.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, _, err := report.ParseWeekKey(weekKey); err != nil {
		return nil, err
	}
	return f.resp, nil
}

type fakeUsers struct {
	byEmail map[string]*store.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*store.User)}
}

func (f *fakeUsers) CreateUser(_ context.Context, u store.User) error {
	if _, exists := f.byEmail[u.Email]; exists {
		return store.ErrEmailTaken
	}
	f.byEmail[u.Email] = &u
	return nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*store.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

type testEnv struct {
	server  *Server
	handler http.Handler
	sync    *fakeSync
	rec     *fakeRecommender
	rep     *fakeReporter
	users   *fakeUsers
	tokens  *auth.Tokens
}

func newTestEnv() *testEnv {
	env := &testEnv{
		sync: &fakeSync{
			pushResp: &syncservice.PushResponse{SuccessCount: 1, NewCheckpoint: "2025-01-06T10:00:00.000000Z"},
			pullResp: &syncservice.PullResponse{Changes: []syncservice.Delta{}},
		},
		rec:   &fakeRecommender{resp: &recommend.Response{NoteID: "n1", Recommendations: []recommend.Recommendation{}}},
		rep:   &fakeReporter{resp: &report.Response{WeekKey: "2025-W02", Report: json.RawMessage(`{}`)}},
		users: newFakeUsers(),
		tokens: &auth.Tokens{
			Secret:     []byte("test-secret"),
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
	}
	env.server = &Server{
		Sync:          env.sync,
		Recommend:     env.rec,
		Reports:       env.rep,
		Users:         env.users,
		Tokens:            env.tokens,
		MaxBatchBytes:     1 << 20,
		RecommendDefaultK: 10,
	}
	env.handler = env.server.Routes()
	return env
}

func (e *testEnv) request(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) accessToken(t *testing.T, userID string) string {
	t.Helper()
	pair, err := e.tokens.Issue(userID)
	if err != nil {
		t.Fatal(err)
	}
	return pair.AccessToken
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv()
	paths := []struct{ method, path string }{
		{http.MethodPost, "/sync/push"},
		{http.MethodPost, "/sync/pull"},
		{http.MethodGet, "/recommend/n1"},
		{http.MethodGet, "/reports/weekly?week=2025-W02"},
	}
	for _, p := range paths {
		rec := env.request(t, p.method, p.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestHealthzOpen(t *testing.T) {
	env := newTestEnv()
	rec := env.request(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestPushEndpoint(t *testing.T) {
	env := newTestEnv()
	tok := env.accessToken(t, "user-1")

	body := `{"device_id":"d1","changes":[{"entity_type":"note","entity_id":"n1","operation":"insert","payload":{}}]}`
	rec := env.request(t, http.MethodPost, "/sync/push", body, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("push status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.sync.gotUser != "user-1" {
		t.Errorf("push user = %q, want user-1", env.sync.gotUser)
	}

	// Envelope-level failures map to protocol statuses.
	env.sync.pushErr = syncservice.ErrBatchTooLarge
	if rec := env.request(t, http.MethodPost, "/sync/push", body, tok); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized batch status = %d, want 413", rec.Code)
	}
	env.sync.pushErr = syncservice.ErrEmptyBatch
	if rec := env.request(t, http.MethodPost, "/sync/push", body, tok); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}

	env.sync.pushErr = nil
	if rec := env.request(t, http.MethodPost, "/sync/push", "{not json", tok); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestPushBodySizeCap(t *testing.T) {
	env := newTestEnv()
	env.server.MaxBatchBytes = 64
	env.handler = env.server.Routes()
	tok := env.accessToken(t, "user-1")

	big := `{"device_id":"d1","changes":[{"payload":"` + strings.Repeat("x", 200) + `"}]}`
	rec := env.request(t, http.MethodPost, "/sync/push", big, tok)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}
	if env.sync.gotPushes != 0 {
		t.Error("oversized body must be rejected before the service is called")
	}
}

func TestPullEndpoint(t *testing.T) {
	env := newTestEnv()
	tok := env.accessToken(t, "user-1")

	// Null checkpoint passes through as nil.
	rec := env.request(t, http.MethodPost, "/sync/pull", `{"device_id":"d1","checkpoint":null}`, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("pull status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.sync.gotCP != nil {
		t.Errorf("checkpoint = %v, want nil", env.sync.gotCP)
	}

	// A valid checkpoint is parsed to UTC time.
	rec = env.request(t, http.MethodPost, "/sync/pull", `{"device_id":"d1","checkpoint":"2025-01-06T10:00:00.123456Z"}`, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("pull status = %d", rec.Code)
	}
	if env.sync.gotCP == nil || env.sync.gotCP.Format("2006-01-02") != "2025-01-06" {
		t.Errorf("checkpoint = %v, want parsed 2025-01-06", env.sync.gotCP)
	}

	// Malformed checkpoint is a 400 before the service runs.
	rec = env.request(t, http.MethodPost, "/sync/pull", `{"device_id":"d1","checkpoint":"yesterday"}`, tok)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed checkpoint status = %d, want 400", rec.Code)
	}
}

func TestRecommendEndpoint(t *testing.T) {
	env := newTestEnv()
	tok := env.accessToken(t, "user-1")

	rec := env.request(t, http.MethodGet, "/recommend/n1", "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommend status = %d", rec.Code)
	}
	if env.rec.gotK != 10 {
		t.Errorf("default k = %d, want 10", env.rec.gotK)
	}

	for _, q := range []string{"k=0", "k=51", "k=abc"} {
		if rec := env.request(t, http.MethodGet, "/recommend/n1?"+q, "", tok); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s status = %d, want 422", q, rec.Code)
		}
	}

	env.rec.err = store.ErrNotFound
	if rec := env.request(t, http.MethodGet, "/recommend/missing", "", tok); rec.Code != http.StatusNotFound {
		t.Errorf("missing note status = %d, want 404", rec.Code)
	}
}

func TestWeeklyReportEndpoint(t *testing.T) {
	env := newTestEnv()
	tok := env.accessToken(t, "user-1")

	if rec := env.request(t, http.MethodGet, "/reports/weekly?week=2025-W02", "", tok); rec.Code != http.StatusOK {
		t.Errorf("report status = %d, want 200", rec.Code)
	}
	if rec := env.request(t, http.MethodGet, "/reports/weekly", "", tok); rec.Code != http.StatusBadRequest {
		t.Errorf("missing week status = %d, want 400", rec.Code)
	}
	if rec := env.request(t, http.MethodGet, "/reports/weekly?week=2024-W54", "", tok); rec.Code != http.StatusBadRequest {
		t.Errorf("bad week status = %d, want 400", rec.Code)
	}

	env.rep.err = report.ErrNoNotes
	if rec := env.request(t, http.MethodGet, "/reports/weekly?week=2025-W02", "", tok); rec.Code != http.StatusNotFound {
		t.Errorf("empty week status = %d, want 404", rec.Code)
	}
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	env := newTestEnv()

	// Register.
	rec := env.request(t, http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.UserID == "" || created.AccessToken == "" || created.RefreshToken == "" {
		t.Fatalf("register response incomplete: %+v", created)
	}

	// Duplicate email.
	rec = env.request(t, http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	// Login with correct and wrong credentials.
	rec = env.request(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", rec.Code)
	}
	rec = env.request(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"wrong-password"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}
	rec = env.request(t, http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", rec.Code)
	}

	// Refresh.
	rec = env.request(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+created.RefreshToken+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Errorf("refresh status = %d, want 200", rec.Code)
	}
	rec = env.request(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"garbage"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad refresh status = %d, want 401", rec.Code)
	}

	// An access token must not pass as a refresh token.
	rec = env.request(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+created.AccessToken+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("access-as-refresh status = %d, want 401", rec.Code)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/auth/register", `{"email":"b@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Body.String())
	}
	env.users.byEmail["b@example.com"].IsActive = false

	rec = env.request(t, http.MethodPost, "/auth/login", `{"email":"b@example.com","password":"hunter2hunter2"}`, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("deactivated login status = %d, want 403", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv()
	tests := []string{
		`{"email":"not-an-email","password":"hunter2hunter2"}`,
		`{"email":"a@example.com","password":"short"}`,
		`{"email":"a@example.com"}`,
		`{not json`,
	}
	for _, body := range tests {
		if rec := env.request(t, http.MethodPost, "/auth/register", body, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("register %s status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation id = %q, want corr-123", got)
	}

	// Generated when absent.
	rec = env.request(t, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation id not generated")
	}
}
