package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"family-ops/internal/config"
	"family-ops/internal/content"
	"family-ops/internal/entitlement"
	"family-ops/internal/generation"
	"family-ops/internal/llm"
	"family-ops/internal/planner"
	"family-ops/internal/routine"
	"family-ops/internal/shopping"
	"family-ops/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

// slowGenerator never answers before the generation deadline.
type slowGenerator struct{}

func (slowGenerator) GenerateContent(ctx context.Context, _ string) (llm.ContentResponse, error) {
	<-ctx.Done()
	return llm.ContentResponse{}, ctx.Err()
}

type env struct {
	gw    store.Gateway
	srv   *httptest.Server
	token string
}

func newEnv(t *testing.T, overrides config.Entitlement) *env {
	t.Helper()
	gw := store.NewMemory()
	ctx := context.Background()
	_, err := gw.Create(ctx, store.FamilyMembers, store.Record{"family_id": "fam", "user_id": "u1", "role": entitlement.RoleOwner})
	require.NoError(t, err)

	checker := entitlement.NewChecker(gw, overrides)
	validator, err := content.NewValidator()
	require.NoError(t, err)
	orch := generation.New(checker, slowGenerator{}, validator, generation.WithTimeout(10*time.Millisecond))
	lists := shopping.NewService(gw, nil)
	meals := planner.NewMealRepository(gw)

	h := NewHandler(Deps{
		Members:  checker,
		Toggler:  routine.NewEngine(gw, routine.RemoveRow, nil),
		Routines: routine.NewService(gw, checker, nil),
		Weeks:    planner.NewWeekPlanner(orch, meals, lists, nil, nil),
		Packing:  shopping.NewPackingPlanner(orch, lists, time.UTC, nil),
		Lists:    lists,
		DataPath: t.TempDir(),
	})
	srv := httptest.NewServer(NewRouter(h, NewAuthenticator(secret, overrides.QABypass)))
	t.Cleanup(srv.Close)

	token, err := SignToken(secret, "u1", time.Hour)
	require.NoError(t, err)
	return &env{gw: gw, srv: srv, token: token}
}

func (e *env) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := e.raw(t, method, path, body, e.token)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return status, out
}

func (e *env) raw(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

func (e *env) seedRoutine(t *testing.T, tasks ...string) string {
	t.Helper()
	raw, err := json.Marshal(routine.Schedule{Tasks: tasks})
	require.NoError(t, err)
	rec, err := e.gw.Create(context.Background(), store.Routines, store.Record{
		"family_id": "fam", "child_id": "kid", "title": "Morning", "schedule": string(raw), "streak_count": 0,
	})
	require.NoError(t, err)
	return rec.ID()
}

func TestToggleEndpoint(t *testing.T) {
	e := newEnv(t, config.Entitlement{})
	id := e.seedRoutine(t, "Brush teeth", "Get dressed", "Breakfast", "Pack bag")

	var last map[string]any
	for i := 0; i < 4; i++ {
		status, body := e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{
			"routineId": id, "taskIndex": i, "date": "2024-06-03", "checked": true,
		})
		require.Equal(t, http.StatusOK, status)
		last = body
	}
	assert.Equal(t, map[string]any{"success": true, "completed": 4.0, "total": 4.0, "streak": 1.0}, last)

	status, body := e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{
		"routineId": id, "taskIndex": 0, "date": "2024-06-03", "checked": false,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"success": true, "completed": 3.0, "total": 4.0, "streak": 0.0}, body)

	status, raw := e.raw(t, http.MethodGet, "/v1/routines/"+id+"/tasks?date=2024-06-03", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	var states []routine.TaskStatus
	require.NoError(t, json.Unmarshal(raw, &states))
	require.Len(t, states, 4)
	assert.False(t, states[0].Checked)
	assert.True(t, states[3].Checked)
}

func TestToggleEndpointErrors(t *testing.T) {
	e := newEnv(t, config.Entitlement{})
	id := e.seedRoutine(t, "Read")

	status, body := e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{"routineId": id, "date": "2024-06-03"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"error": "Missing required fields"}, body)

	status, body = e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{"routineId": "nope", "taskIndex": 0, "date": "2024-06-03"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Routine not found", body["error"])

	status, _ = e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{"routineId": id, "taskIndex": 3, "date": "2024-06-03"})
	assert.Equal(t, http.StatusBadRequest, status)

	stranger, err := SignToken(secret, "u2", time.Hour)
	require.NoError(t, err)
	status, _ = e.raw(t, http.MethodPost, "/v1/routines/toggle", map[string]any{"routineId": id, "taskIndex": 0, "date": "2024-06-03"}, stranger)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestToggleEndpointResolvesFamilyThroughChild(t *testing.T) {
	e := newEnv(t, config.Entitlement{})
	ctx := context.Background()
	kid, err := e.gw.Create(ctx, store.Children, store.Record{"family_id": "fam", "name": "Ada"})
	require.NoError(t, err)
	raw, err := json.Marshal(routine.Schedule{Tasks: []string{"Read"}})
	require.NoError(t, err)
	rec, err := e.gw.Create(ctx, store.Routines, store.Record{
		"child_id": kid.ID(), "title": "Evening", "schedule": string(raw), "streak_count": 0,
	})
	require.NoError(t, err)

	status, body := e.do(t, http.MethodPost, "/v1/routines/toggle", map[string]any{
		"routineId": rec.ID(), "taskIndex": 0, "date": "2024-06-03", "checked": true,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 1.0, body["completed"])

	status, _ = e.raw(t, http.MethodGet, "/v1/routines/"+rec.ID()+"/tasks?date=2024-06-03", nil, e.token)
	assert.Equal(t, http.StatusOK, status)

	stranger, err := SignToken(secret, "u2", time.Hour)
	require.NoError(t, err)
	status, _ = e.raw(t, http.MethodPost, "/v1/routines/toggle", map[string]any{"routineId": rec.ID(), "taskIndex": 0, "date": "2024-06-03"}, stranger)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHTTPTogglerAgainstRouter(t *testing.T) {
	e := newEnv(t, config.Entitlement{})
	id := e.seedRoutine(t, "Read")
	idx := 0

	res, err := routine.NewHTTPToggler(e.srv.URL, e.token).Toggle(context.Background(), routine.ToggleRequest{
		RoutineID: id, TaskIndex: &idx, Date: "2024-06-03", Checked: true,
	})
	require.NoError(t, err)
	assert.Equal(t, routine.ToggleResult{Completed: 1, Total: 1, Streak: 1}, res)

	_, err = routine.NewHTTPToggler(e.srv.URL, e.token).Toggle(context.Background(), routine.ToggleRequest{
		RoutineID: "missing", TaskIndex: &idx, Date: "2024-06-03",
	})
	assert.ErrorIs(t, err, routine.ErrNotFound)
}

func TestAuthentication(t *testing.T) {
	e := newEnv(t, config.Entitlement{})

	status, _ := e.raw(t, http.MethodGet, "/admin/health", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	forged, err := SignToken("other-secret", "u1", time.Hour)
	require.NoError(t, err)
	status, _ = e.raw(t, http.MethodGet, "/admin/health", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, status)

	expired, err := SignToken(secret, "u1", -time.Minute)
	require.NoError(t, err)
	status, _ = e.raw(t, http.MethodGet, "/admin/health", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.raw(t, http.MethodGet, "/admin/health", nil, e.token)
	assert.Equal(t, http.StatusOK, status)

	status, _ = e.raw(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestQABypass(t *testing.T) {
	e := newEnv(t, config.Entitlement{QABypass: true, ForcePro: true})

	status, body := e.raw(t, http.MethodPost, "/v1/families/demo/meal-plan", map[string]any{"weekStart": "2024-06-05"}, "")
	require.Equal(t, http.StatusOK, status)
	var res planner.WeekResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "2024-06-03", res.WeekStart)

	m, err := store.First(context.Background(), e.gw, store.FamilyMembers, store.Filter{"user_id": QAUser, "family_id": "demo"})
	require.NoError(t, err)
	assert.Equal(t, entitlement.RoleOwner, m["role"])
}

func TestMealPlanEndpoint(t *testing.T) {
	e := newEnv(t, config.Entitlement{ForcePro: true})

	status, raw := e.raw(t, http.MethodPost, "/v1/families/fam/meal-plan", map[string]any{"weekStart": "2024-06-03"}, e.token)
	require.Equal(t, http.StatusOK, status)
	var res planner.WeekResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, 21, res.MealsCreated)
	assert.Equal(t, generation.SourceFallback, res.Source)
	assert.NotEmpty(t, res.ListID)

	status, items := e.raw(t, http.MethodGet, "/v1/lists/"+res.ListID+"/items", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	var got []shopping.Item
	require.NoError(t, json.Unmarshal(items, &got))
	assert.Len(t, got, res.ItemsCreated)
}

func TestGenerationRequiresPro(t *testing.T) {
	e := newEnv(t, config.Entitlement{})

	status, body := e.do(t, http.MethodPost, "/v1/families/fam/meal-plan", map[string]any{})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "Pro subscription required", body["error"])

	status, _ = e.do(t, http.MethodPost, "/v1/families/fam/packing", map[string]any{"destination": "Lisbon"})
	assert.Equal(t, http.StatusPaymentRequired, status)
}

func TestPackingEndpoint(t *testing.T) {
	e := newEnv(t, config.Entitlement{ForcePro: true})

	status, body := e.do(t, http.MethodPost, "/v1/families/fam/packing", map[string]any{
		"destination": "Lisbon", "startDate": "2024-07-01", "endDate": "2024-07-05",
		"travelers": []map[string]any{{"type": "adult", "age": 40}, {"type": "child", "age": 6}},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(generation.SourceFallback), body["source"])
	assert.NotEmpty(t, body["listId"])
	assert.Positive(t, body["itemsCreated"])
}

func TestListEndpoints(t *testing.T) {
	e := newEnv(t, config.Entitlement{})
	list, err := shopping.NewService(e.gw, nil).CreateList(context.Background(), "fam", shopping.Grocery, "Groceries")
	require.NoError(t, err)
	base := "/v1/lists/" + list.ID

	status, body := e.do(t, http.MethodPost, base+"/ingredients", map[string]any{"items": []map[string]string{{"name": "Milk"}, {"name": "Eggs", "qty": "12"}}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["addedCount"])

	status, body = e.do(t, http.MethodPost, base+"/items", map[string]any{"name": "milk"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["merged"])
	assert.Equal(t, "2", body["quantity"])

	status, raw := e.raw(t, http.MethodGet, base+"/items", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	var items []shopping.Item
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 2)

	status, body = e.do(t, http.MethodPut, base+"/order", map[string]any{"items": []map[string]any{
		{"id": items[1].ID, "position": 0}, {"id": items[0].ID, "position": 1},
	}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"updated": 2.0, "total": 2.0}, body)

	_, raw = e.raw(t, http.MethodGet, base+"/items", nil, e.token)
	require.NoError(t, json.Unmarshal(raw, &items))
	assert.Equal(t, "Eggs", items[0].Name)

	status, _ = e.do(t, http.MethodPost, base+"/items", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodGet, "/v1/lists/missing/items", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
