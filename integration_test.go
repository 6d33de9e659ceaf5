package main_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calculations-api/internal/auth"
	"calculations-api/internal/metrics"
	"calculations-api/internal/repository"
	"calculations-api/internal/server"
)

func SetupServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.NewSQLiteStore(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	authSvc := auth.NewService(store, []byte("integration-secret"), 15*time.Minute, 24*time.Hour, zap.NewNop())
	return server.New(store, authSvc, metrics.New(), zap.NewNop()).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, payload string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != "" {
		body = bytes.NewBufferString(payload)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, handler http.Handler, username string) (access, refresh string) {
	t.Helper()

	registerPayload := fmt.Sprintf(
		`{"username":%q,"email":"%s@example.com","password":"pass12345","confirm_password":"pass12345"}`,
		username, username)
	w := doRequest(t, handler, http.MethodPost, "/auth/register", "", registerPayload)
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: status %d: %s", w.Code, w.Body.String())
	}

	loginPayload := fmt.Sprintf(`{"username":%q,"password":"pass12345"}`, username)
	w = doRequest(t, handler, http.MethodPost, "/auth/login", "", loginPayload)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: status %d: %s", w.Code, w.Body.String())
	}

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("tokens not found in login response")
	}
	if login.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", login.TokenType)
	}
	return login.AccessToken, login.RefreshToken
}

type calculationBody struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Result float64 `json:"result"`
}

type usageReportBody struct {
	TotalCalculations int64            `json:"total_calculations"`
	ByKind            map[string]int64 `json:"by_kind"`
	AverageResult     *float64         `json:"average_result"`
	MostRecent        *time.Time       `json:"most_recent"`
}

func TestIntegration_FullFlow(t *testing.T) {
	handler := SetupServer(t)
	token, _ := registerAndLogin(t, handler, "user1")

	// Store 2 + 2.
	w := doRequest(t, handler, http.MethodPost, "/calculations", token, `{"kind":"add","operands":[2,2]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create add failed: status %d: %s", w.Code, w.Body.String())
	}
	var addCalc calculationBody
	if err := json.Unmarshal(w.Body.Bytes(), &addCalc); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if addCalc.Result != 4 {
		t.Fatalf("expected result 4, got %v", addCalc.Result)
	}

	// Store 3 * 5.
	w = doRequest(t, handler, http.MethodPost, "/calculations", token, `{"kind":"multiply","operands":[3,5]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create multiply failed: status %d: %s", w.Code, w.Body.String())
	}
	var mulCalc calculationBody
	if err := json.Unmarshal(w.Body.Bytes(), &mulCalc); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if mulCalc.Result != 15 {
		t.Fatalf("expected result 15, got %v", mulCalc.Result)
	}

	// Usage report over both records.
	w = doRequest(t, handler, http.MethodGet, "/reports/usage", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("usage report failed: status %d: %s", w.Code, w.Body.String())
	}
	var report usageReportBody
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode usage report: %v", err)
	}
	if report.TotalCalculations != 2 {
		t.Fatalf("expected total 2, got %d", report.TotalCalculations)
	}
	if report.ByKind["add"] != 1 || report.ByKind["multiply"] != 1 || len(report.ByKind) != 2 {
		t.Fatalf("unexpected by_kind: %v", report.ByKind)
	}
	if report.AverageResult == nil || *report.AverageResult != 9.5 {
		t.Fatalf("expected average 9.5, got %v", report.AverageResult)
	}
	if report.MostRecent == nil {
		t.Fatal("expected most_recent to be set")
	}

	// History lists both, newest first.
	w = doRequest(t, handler, http.MethodGet, "/calculations", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: status %d", w.Code)
	}
	var list []calculationBody
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].ID != mulCalc.ID {
		t.Fatal("expected the multiply record first (newest first)")
	}

	// Edit the addition; the result is recomputed.
	w = doRequest(t, handler, http.MethodPut, "/calculations/"+addCalc.ID, token, `{"operands":[10,5,2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: status %d: %s", w.Code, w.Body.String())
	}
	var updated calculationBody
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode update response: %v", err)
	}
	if updated.Result != 17 {
		t.Fatalf("expected recomputed result 17, got %v", updated.Result)
	}

	w = doRequest(t, handler, http.MethodGet, "/calculations/"+addCalc.ID, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get after update failed: status %d", w.Code)
	}
	var fetched calculationBody
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if fetched.Result != 17 {
		t.Fatalf("expected stored result 17, got %v", fetched.Result)
	}

	// Delete the multiplication and confirm it is gone.
	w = doRequest(t, handler, http.MethodDelete, "/calculations/"+mulCalc.ID, token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete failed: status %d", w.Code)
	}
	w = doRequest(t, handler, http.MethodGet, "/calculations/"+mulCalc.ID, token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	// The report reflects the edit and the delete.
	w = doRequest(t, handler, http.MethodGet, "/reports/usage", token, "")
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode final report: %v", err)
	}
	if report.TotalCalculations != 1 {
		t.Fatalf("expected total 1 after delete, got %d", report.TotalCalculations)
	}
	if report.AverageResult == nil || *report.AverageResult != 17 {
		t.Fatalf("expected average 17, got %v", report.AverageResult)
	}
}

func TestIntegration_UnauthorizedAccess(t *testing.T) {
	handler := SetupServer(t)

	w := doRequest(t, handler, http.MethodPost, "/calculations", "", `{"kind":"add","operands":[2,2]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doRequest(t, handler, http.MethodGet, "/reports/usage", "garbage-token", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestIntegration_InvalidLogin(t *testing.T) {
	handler := SetupServer(t)
	registerAndLogin(t, handler, "user1")

	w := doRequest(t, handler, http.MethodPost, "/auth/login", "", `{"username":"nonexistent","password":"pass12345"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}

	w = doRequest(t, handler, http.MethodPost, "/auth/login", "", `{"username":"user1","password":"wrongpass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestIntegration_RefreshFlow(t *testing.T) {
	handler := SetupServer(t)
	_, refresh := registerAndLogin(t, handler, "user1")

	w := doRequest(t, handler, http.MethodPost, "/auth/refresh", "", fmt.Sprintf(`{"refresh_token":%q}`, refresh))
	if w.Code != http.StatusOK {
		t.Fatalf("refresh failed: status %d: %s", w.Code, w.Body.String())
	}
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("failed to decode refresh response: %v", err)
	}

	w = doRequest(t, handler, http.MethodGet, "/calculations", refreshed.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected refreshed token to be accepted, got %d", w.Code)
	}
}

func TestIntegration_DivisionByZeroIsNotPersisted(t *testing.T) {
	handler := SetupServer(t)
	token, _ := registerAndLogin(t, handler, "user1")

	w := doRequest(t, handler, http.MethodPost, "/calculations", token, `{"kind":"divide","operands":[10,0]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero divisor, got %d", w.Code)
	}

	w = doRequest(t, handler, http.MethodGet, "/reports/usage", token, "")
	var report usageReportBody
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.TotalCalculations != 0 {
		t.Fatalf("expected nothing persisted, got total %d", report.TotalCalculations)
	}
}
