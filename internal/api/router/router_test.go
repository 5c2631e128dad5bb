package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/chat"
	"github.com/esthetix/clinic-portal/internal/gallery"
	"github.com/esthetix/clinic-portal/internal/http/handlers"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/internal/users"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

const testSecret = "router-test-secret"

// fakeDynamo backs every store in the stack, the way the shared table does
// in production. It interprets only the expressions the stores issue.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func boolAttr(item map[string]types.AttributeValue, name string) bool {
	if v, ok := item[name].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func itemKey(item map[string]types.AttributeValue) string {
	return strAttr(item, "pk") + "|" + strAttr(item, "sk")
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := ""
	if v, ok := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if strAttr(item, "pk") != pk {
			continue
		}
		if !matchesFilter(item, in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			continue
		}
		out = append(out, item)
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func matchesFilter(item map[string]types.AttributeValue, filter *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if filter == nil {
		return true
	}
	parts := strings.SplitN(*filter, " = ", 2)
	if len(parts) != 2 {
		return false
	}
	attr := parts[0]
	if resolved, ok := names[attr]; ok {
		attr = resolved
	}
	want, _ := values[parts[1]].(*types.AttributeValueMemberS)
	return want != nil && strAttr(item, attr) == want.Value
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, requests := range in.RequestItems {
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				f.items[itemKey(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(f.items, itemKey(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyUpdate(itemKey(in.Key), in.ConditionExpression, in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range in.TransactItems {
		switch {
		case item.Update != nil:
			u := item.Update
			if err := f.applyUpdate(itemKey(u.Key), u.ConditionExpression, u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		case item.Put != nil:
			f.items[itemKey(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.items, itemKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) applyUpdate(key string, condition, update *string, names map[string]string, values map[string]types.AttributeValue) error {
	item, exists := f.items[key]

	if condition != nil {
		cond := *condition
		if strings.Contains(cond, "attribute_exists(pk)") && !exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("item missing")}
		}
		if strings.Contains(cond, "isAvailable = :open") {
			want, _ := values[":open"].(*types.AttributeValueMemberBOOL)
			if want == nil || boolAttr(item, "isAvailable") != want.Value {
				return &types.ConditionalCheckFailedException{Message: aws.String("availability check")}
			}
		}
		if strings.Contains(cond, "appointmentId = :none") {
			if _, ok := item["appointmentId"]; ok && strAttr(item, "appointmentId") != "none" {
				return &types.ConditionalCheckFailedException{Message: aws.String("occupied")}
			}
		}
	}

	if !exists {
		parts := strings.SplitN(key, "|", 2)
		item = map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: parts[0]},
			"sk": &types.AttributeValueMemberS{Value: parts[1]},
		}
		f.items[key] = item
	}
	if update == nil {
		return nil
	}
	expr := *update
	if strings.Contains(expr, "#s = :status") {
		item[names["#s"]] = values[":status"]
	}
	if strings.Contains(expr, "isAvailable = :avail") {
		item["isAvailable"] = values[":avail"]
	}
	if strings.Contains(expr, "appointmentId = :appt") {
		item["appointmentId"] = values[":appt"]
	}
	return nil
}

type apiFixture struct {
	server    *httptest.Server
	userStore *users.Store
	slotStore *slots.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := logging.Default()
	client := newFakeDynamo()

	slotStore := slots.NewStore(client, "schedule-test", logger)
	apptStore := appointments.NewStore(client, "schedule-test", logger)
	userStore := users.NewStore(client, "schedule-test", logger)
	treatmentStore := treatments.NewStore(client, "schedule-test", logger)
	catalog := treatments.NewCatalog(treatmentStore, nil, logger)

	bookingSvc := appointments.NewBookingService(slotStore, apptStore, userStore, nil, nil, logger, time.Hour, time.UTC)
	workflow := appointments.NewWorkflow(apptStore, nil, nil, logger)
	manager := slots.NewManager(slotStore, apptStore, logger)
	chatSvc := chat.NewService(catalog, nil, 60, nil, logger)
	imageCache := gallery.NewImageCache(nil, logger)

	handler := New(&Config{
		Logger:         logger,
		Booking:        handlers.NewBookingHandler(bookingSvc, slotStore, logger),
		Admin:          handlers.NewAdminHandler(workflow, manager, slotStore, logger),
		Treatments:     handlers.NewTreatmentHandler(catalog, logger),
		Chat:           handlers.NewChatHandler(chatSvc, logger),
		Profile:        handlers.NewProfileHandler(userStore, logger),
		Gallery:        handlers.NewGalleryHandler(imageCache, logger),
		AuthJWTSecret:  testSecret,
		AdminChecker:   userStore,
		MetricsHandler: http.NotFoundHandler(),
	})

	// The first grid read seeds the default week.
	slotStore.FetchGrid(context.Background())

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &apiFixture{server: server, userStore: userStore, slotStore: slotStore}
}

func (fx *apiFixture) token(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, fx.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (fx *apiFixture) completeProfile(t *testing.T, uid string) {
	t.Helper()
	require.NoError(t, fx.userStore.Put(context.Background(), users.Profile{
		UID:         uid,
		Name:        "Dana Reyes",
		Email:       "dana@example.com",
		Phone:       "555-0100",
		Address:     "12 Main St",
		DateOfBirth: "1990-04-02",
	}))
}

func TestGridEndpointBootstraps(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodGet, "/api/slots", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	grid := body["slots"].(map[string]any)
	assert.Len(t, grid, 48)
}

func TestBookingRequiresAuth(t *testing.T) {
	fx := newAPIFixture(t)
	resp := fx.do(t, http.MethodPost, "/api/bookings", "", map[string]string{"date": "2027-06-07", "time": "10:00"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBookingRequiresCompleteProfile(t *testing.T) {
	fx := newAPIFixture(t)
	resp := fx.do(t, http.MethodPost, "/api/bookings", fx.token(t, "user-1"),
		map[string]string{"service": "Hydrafacial", "date": "2027-06-07", "time": "10:00"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "profile_incomplete", decode(t, resp)["code"])
}

func TestBookingFlow(t *testing.T) {
	fx := newAPIFixture(t)
	fx.completeProfile(t, "user-1")
	token := fx.token(t, "user-1")

	// 2027-06-07 is a Monday.
	req := map[string]string{"service": "Hydrafacial", "date": "2027-06-07", "time": "10:00"}
	resp := fx.do(t, http.MethodPost, "/api/bookings", token, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode(t, resp)["appointment"].(map[string]any)
	assert.Equal(t, "monday_1000", appt["slotId"])
	assert.Equal(t, "pending", appt["status"])

	// The slot is gone from availability.
	resp = fx.do(t, http.MethodGet, "/api/availability?date=2027-06-07", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	times := decode(t, resp)["times"].([]any)
	assert.Len(t, times, 7)
	assert.NotContains(t, times, "10:00")

	// A second booking of the same slot conflicts.
	fx.completeProfile(t, "user-2")
	resp = fx.do(t, http.MethodPost, "/api/bookings", fx.token(t, "user-2"), req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_unavailable", decode(t, resp)["code"])

	// The winner sees their booking.
	resp = fx.do(t, http.MethodGet, "/api/bookings/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode(t, resp)["appointments"].([]any)
	assert.Len(t, mine, 1)
}

func TestProfileRoundTrip(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.token(t, "user-1")

	resp := fx.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/api/profile", token, map[string]string{
		"name": "Dana Reyes", "email": "dana@example.com", "phone": "555-0100",
		"address": "12 Main St", "dateOfBirth": "1990-04-02",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["complete"])

	resp = fx.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode(t, resp)["profile"].(map[string]any)
	assert.Equal(t, "user-1", profile["uid"], "uid comes from the token")
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodGet, "/api/admin/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/admin/appointments", fx.token(t, "user-1"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminWorkflow(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	fx.completeProfile(t, "user-1")
	require.NoError(t, fx.userStore.GrantAdmin(ctx, "admin-1"))
	admin := fx.token(t, "admin-1")

	// Book as the patient.
	resp := fx.do(t, http.MethodPost, "/api/bookings", fx.token(t, "user-1"),
		map[string]string{"service": "Hydrafacial", "date": "2027-06-07", "time": "10:00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	apptID := decode(t, resp)["appointment"].(map[string]any)["id"].(string)

	// The dashboard lists it.
	resp = fx.do(t, http.MethodGet, "/api/admin/appointments", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["appointments"].([]any), 1)

	// Approve, then reject; rejection reopens the slot.
	resp = fx.do(t, http.MethodPatch, "/api/admin/appointments/"+apptID+"/status", admin,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPatch, "/api/admin/appointments/"+apptID+"/status", admin,
		map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slot, err := fx.slotStore.Get(ctx, "monday_1000")
	require.NoError(t, err)
	assert.True(t, slot.IsAvailable)

	// Unknown status is rejected.
	resp = fx.do(t, http.MethodPatch, "/api/admin/appointments/"+apptID+"/status", admin,
		map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminSlotToggle(t *testing.T) {
	fx := newAPIFixture(t)
	require.NoError(t, fx.userStore.GrantAdmin(context.Background(), "admin-1"))
	admin := fx.token(t, "admin-1")

	resp := fx.do(t, http.MethodPost, "/api/admin/slots/monday_1000/toggle", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slot := decode(t, resp)["slot"].(map[string]any)
	assert.Equal(t, false, slot["isAvailable"])

	resp = fx.do(t, http.MethodPost, "/api/admin/slots/nonexistent/toggle", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminScheduleApply(t *testing.T) {
	fx := newAPIFixture(t)
	require.NoError(t, fx.userStore.GrantAdmin(context.Background(), "admin-1"))
	admin := fx.token(t, "admin-1")

	tmpl := map[string]any{
		"monday": map[string]any{"open": true, "windows": []map[string]string{{"start": "09:00", "end": "12:00"}}},
	}
	resp := fx.do(t, http.MethodPut, "/api/admin/schedule", admin, tmpl)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, decode(t, resp)["slots"])

	resp = fx.do(t, http.MethodGet, "/api/admin/schedule", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	schedule := decode(t, resp)["schedule"].(map[string]any)
	assert.Contains(t, schedule, "monday")
}

func TestTreatmentsAndChat(t *testing.T) {
	fx := newAPIFixture(t)
	require.NoError(t, fx.userStore.GrantAdmin(context.Background(), "admin-1"))
	admin := fx.token(t, "admin-1")

	resp := fx.do(t, http.MethodPut, "/api/admin/treatments", admin, map[string]any{
		"pageName": "hydrafacial",
		"name":     "Hydrafacial",
		"tagline":  "Deep cleanse and hydrate",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/treatments", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["treatments"].([]any), 1)

	resp = fx.do(t, http.MethodGet, "/api/treatments/hydrafacial", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/treatments/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// FAQ answers work without an LLM configured.
	resp = fx.do(t, http.MethodPost, "/api/chat", "", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "how do I book an appointment?"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode(t, resp)["reply"], "booking page")
}

func TestHealth(t *testing.T) {
	fx := newAPIFixture(t)
	resp := fx.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
