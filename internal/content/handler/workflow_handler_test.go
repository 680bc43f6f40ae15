package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/muse/internal/config"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/bitfantasy/muse/internal/content/testutil"
	"github.com/bitfantasy/muse/internal/middleware"
)

func setupWorkflowAPITest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	handlers := NewHandlers(service.NewServices(db, repos, nil, &config.Config{}))

	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/workflows", middleware.RequireRole("admin"), handlers.WorkflowDef.Create)
	api.GET("/workflows", handlers.WorkflowDef.List)
	api.GET("/workflows/:id", handlers.WorkflowDef.Get)
	api.PUT("/workflows/:id/active", middleware.RequireRole("admin"), handlers.WorkflowDef.SetActive)
	api.GET("/workflows/:id/metrics", handlers.Workflow.Metrics)
	api.POST("/approval-requests", handlers.Workflow.Start)
	api.GET("/approval-requests/:id", handlers.Workflow.Get)
	api.GET("/approval-requests/:id/status", handlers.Workflow.Status)
	api.POST("/approval-requests/:id/actions", handlers.Workflow.ProcessAction)
	api.POST("/approval-requests/:id/cancel", handlers.Workflow.Cancel)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func createWorkflowViaAPI(t *testing.T, env *testutil.TestEnv, token string) (string, []string) {
	t.Helper()
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/workflows", map[string]interface{}{
		"name": "内容发布审批",
		"stages": []map[string]interface{}{
			{"name": "内容审核", "order": 1, "approvers_required": 1, "approvers": []string{"appr-1"}},
			{"name": "发布确认", "order": 2, "approvers_required": 1, "approvers": []string{"appr-2"}},
		},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	workflowID := data["id"].(string)
	var stageIDs []string
	for _, st := range data["stages"].([]interface{}) {
		stageIDs = append(stageIDs, st.(map[string]interface{})["id"].(string))
	}
	return workflowID, stageIDs
}

func TestWorkflowAPILifecycle(t *testing.T) {
	env := setupWorkflowAPITest(t)
	adminToken := testutil.DefaultTestToken()
	testutil.SeedTestUser(t, env.DB, "test-user-001", "Test Admin", "admin")
	testutil.SeedTestUser(t, env.DB, "appr-1", "一审", "approver")
	testutil.SeedTestUser(t, env.DB, "appr-2", "二审", "approver")
	apprToken1 := testutil.GenerateTestToken("appr-1", "一审", "appr-1@test.com", "approver")
	apprToken2 := testutil.GenerateTestToken("appr-2", "二审", "appr-2@test.com", "approver")

	workflowID, stageIDs := createWorkflowViaAPI(t, env, adminToken)

	// 发起审批
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/approval-requests", map[string]interface{}{
		"workflow_id": workflowID,
		"target_type": "content",
		"target_id":   "content-001",
	}, apprToken1)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	requestID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 第一阶段通过
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/approval-requests/"+requestID+"/actions",
		map[string]interface{}{"stage_id": stageIDs[0], "action": "approve"}, apprToken1)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "in_progress" {
		t.Errorf("Expected in_progress, got %v", data["status"])
	}

	// 旧阶段的决策被拒绝
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/approval-requests/"+requestID+"/actions",
		map[string]interface{}{"stage_id": stageIDs[0], "action": "approve"}, apprToken2)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for stale stage, got %d: %s", w.Code, w.Body.String())
	}

	// 第二阶段通过 → 终态
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/approval-requests/"+requestID+"/actions",
		map[string]interface{}{"stage_id": stageIDs[1], "action": "approve"}, apprToken2)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "approved" {
		t.Errorf("Expected approved, got %v", data["status"])
	}

	// 进度视图
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/approval-requests/"+requestID+"/status", nil, apprToken1)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	statusData := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if statusData["progress"].(float64) != 100 {
		t.Errorf("Expected progress 100, got %v", statusData["progress"])
	}

	// 已通过的请求不能取消
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/approval-requests/"+requestID+"/cancel", nil, apprToken1)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 cancelling approved request, got %d: %s", w.Code, w.Body.String())
	}

	// 流程指标
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/workflows/"+workflowID+"/metrics", nil, adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	metricsData := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if metricsData["total_requests"].(float64) != 1 {
		t.Errorf("Expected 1 total request, got %v", metricsData["total_requests"])
	}
}

func TestWorkflowAPIRequiresAdminForCreate(t *testing.T) {
	env := setupWorkflowAPITest(t)
	testutil.SeedTestUser(t, env.DB, "rev-1", "评审员", "reviewer")
	token := testutil.GenerateTestToken("rev-1", "评审员", "rev-1@test.com", "reviewer")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/workflows", map[string]interface{}{
		"name":   "未授权流程",
		"stages": []map[string]interface{}{{"name": "审核", "order": 1, "approvers_required": 1}},
	}, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWorkflowAPIUnauthenticated(t *testing.T) {
	env := setupWorkflowAPITest(t)
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/workflows", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}
