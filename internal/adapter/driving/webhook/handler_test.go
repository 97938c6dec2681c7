package webhook_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belst/discordissues/internal/adapter/driving/webhook"
	"github.com/belst/discordissues/internal/domain/model"
)

// mockStore resolves issue lookups from a fixed map keyed by "repo#number".
type mockStore struct {
	threads map[string]string
	err     error
}

func (m *mockStore) Bind(_ context.Context, _, _ string, _ int) error { return nil }

func (m *mockStore) GetIssue(_ context.Context, _ string) (*model.Correlation, error) {
	return nil, nil
}

func (m *mockStore) GetThread(_ context.Context, repo string, issueNumber int) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.threads[key(repo, issueNumber)], nil
}

func key(repo string, n int) string {
	return fmt.Sprintf("%s#%d", repo, n)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failPinger struct{}

func (failPinger) Ping(context.Context) error { return errors.New("db gone") }

func newServer(t *testing.T, store *mockStore, published *[]model.Event) http.Handler {
	t.Helper()

	publish := func(ev model.Event) { *published = append(*published, ev) }
	h := webhook.NewHandler(store, publish, "bridge-bot[bot]", okPinger{}, slog.Default())
	return webhook.NewServeMux(h, slog.Default())
}

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const createdPayload = `{
	"action": "created",
	"comment": {
		"user": {"login": "maintainer"},
		"body": "fixed in 1.2.3",
		"html_url": "https://github.com/org/app/issues/7#issuecomment-1"
	},
	"issue": {"number": 7},
	"repository": {"full_name": "org/app"}
}`

func TestHandleDelivery_BoundIssue_EmitsEvent(t *testing.T) {
	var published []model.Event
	store := &mockStore{threads: map[string]string{key("org/app", 7): "thread-1"}}
	handler := newServer(t, store, &published)

	rec := post(t, handler, createdPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, published, 1)

	ev, ok := published[0].(model.TrackerCommentEvent)
	require.True(t, ok)
	assert.Equal(t, "thread-1", ev.ThreadID)
	assert.Equal(t, "org/app", ev.Repo)
	assert.Equal(t, 7, ev.IssueNumber)
	assert.Equal(t, "maintainer", ev.Author)
	assert.Equal(t, "fixed in 1.2.3", ev.Body)
	assert.Equal(t, "https://github.com/org/app/issues/7#issuecomment-1", ev.URL)
}

func TestHandleDelivery_NonCreatedAction_AckedWithoutEvent(t *testing.T) {
	var published []model.Event
	store := &mockStore{threads: map[string]string{key("org/app", 7): "thread-1"}}
	handler := newServer(t, store, &published)

	body := strings.Replace(createdPayload, `"created"`, `"edited"`, 1)
	rec := post(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code, "provider must not see a failure and retry")
	assert.Empty(t, published)
}

func TestHandleDelivery_UnboundIssue_AckedWithoutEvent(t *testing.T) {
	var published []model.Event
	store := &mockStore{threads: map[string]string{}}
	handler := newServer(t, store, &published)

	rec := post(t, handler, createdPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, published)
}

func TestHandleDelivery_SelfAuthoredComment_Suppressed(t *testing.T) {
	var published []model.Event
	store := &mockStore{threads: map[string]string{key("org/app", 7): "thread-1"}}
	handler := newServer(t, store, &published)

	body := strings.Replace(createdPayload, `"maintainer"`, `"bridge-bot[bot]"`, 1)
	rec := post(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, published, "own comments must never re-enter the stream")
}

func TestHandleDelivery_MalformedJSON_BadRequest(t *testing.T) {
	var published []model.Event
	handler := newServer(t, &mockStore{}, &published)

	rec := post(t, handler, "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, published)
}

func TestHandleDelivery_MissingFields_BadRequest(t *testing.T) {
	var published []model.Event
	handler := newServer(t, &mockStore{}, &published)

	rec := post(t, handler, `{"action": "created"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, published)
}

func TestHandleDelivery_StoreError_InternalError(t *testing.T) {
	var published []model.Event
	handler := newServer(t, &mockStore{err: errors.New("db gone")}, &published)

	rec := post(t, handler, createdPayload)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, published)
}

func TestHealth_OK(t *testing.T) {
	var published []model.Event
	handler := newServer(t, &mockStore{}, &published)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHealth_DegradedWhenStorageDown(t *testing.T) {
	h := webhook.NewHandler(&mockStore{}, func(model.Event) {}, "bridge-bot[bot]", failPinger{}, slog.Default())
	handler := webhook.NewServeMux(h, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
