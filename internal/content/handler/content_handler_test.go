package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bitfantasy/muse/internal/config"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/bitfantasy/muse/internal/content/testutil"
)

func setupContentAPITest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	handlers := NewHandlers(service.NewServices(db, repos, nil, &config.Config{}))

	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/contents", handlers.Content.Create)
	api.GET("/contents/:id", handlers.Content.Get)
	api.PUT("/contents/:id", handlers.Content.Update)
	api.GET("/contents", handlers.Content.List)
	api.POST("/contents/:id/actions", handlers.Content.ExecuteAction)
	api.GET("/contents/:id/actions", handlers.Content.AvailableActions)
	api.POST("/contents/:id/generation/start", handlers.Content.BeginGeneration)
	api.POST("/contents/:id/generation/complete", handlers.Content.CompleteGeneration)
	api.GET("/contents/:id/logs", handlers.Content.Logs)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func createContentViaAPI(t *testing.T, env *testutil.TestEnv, token, title string) string {
	t.Helper()
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/contents", map[string]interface{}{
		"title":         title,
		"body":          "初稿正文",
		"content_type":  "social_post",
		"budget":        800,
		"urgency_level": "normal",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "draft" {
		t.Fatalf("Expected draft status for new content, got %v", data["status"])
	}
	return data["id"].(string)
}

func TestContentAPILifecycle(t *testing.T) {
	env := setupContentAPITest(t)
	testutil.SeedTestUser(t, env.DB, "creator-1", "创作者", "reviewer")
	testutil.SeedTestUser(t, env.DB, "appr-1", "审批人", "approver")
	testutil.SeedTestUser(t, env.DB, "pub-1", "发布员", "publisher")
	creatorToken := testutil.GenerateTestToken("creator-1", "创作者", "creator-1@test.com", "reviewer")
	apprToken := testutil.GenerateTestToken("appr-1", "审批人", "appr-1@test.com", "approver")
	pubToken := testutil.GenerateTestToken("pub-1", "发布员", "pub-1@test.com", "publisher")

	contentID := createContentViaAPI(t, env, creatorToken, "夏季新品推广文案")

	// 送审
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "submit_for_review"}, creatorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "reviewing" {
		t.Errorf("Expected reviewing, got %v", data["status"])
	}

	// 驳回必须填写意见
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "reject"}, apprToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for reject without comment, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"].(string); !strings.Contains(msg, "MISSING_COMMENT") {
		t.Errorf("Expected MISSING_COMMENT in message, got %s", msg)
	}

	// 带意见驳回，回到草稿
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "reject", "comment": "预算信息缺失"}, apprToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "draft" {
		t.Errorf("Expected draft after reject, got %v", data["status"])
	}

	// 修改后重新送审并通过
	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/contents/"+contentID,
		map[string]interface{}{"title": "夏季新品推广文案", "body": "补充预算后的正文", "budget": 1200}, creatorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "submit_for_review"}, creatorToken)
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "approve"}, apprToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "approved" {
		t.Errorf("Expected approved, got %v", data["status"])
	}

	// 发布
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "publish"}, pubToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "published" {
		t.Errorf("Expected published, got %v", data["status"])
	}
	if data["published_at"] == nil {
		t.Error("Expected published_at to be set")
	}

	// 操作日志完整记录每次转换
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/contents/"+contentID+"/logs", nil, creatorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	logs := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(logs) != 5 {
		t.Errorf("Expected 5 action logs (submit/reject/submit/approve/publish), got %d", len(logs))
	}
}

func TestContentAPIForbiddenTransition(t *testing.T) {
	env := setupContentAPITest(t)
	testutil.SeedTestUser(t, env.DB, "rev-1", "评审员", "reviewer")
	token := testutil.GenerateTestToken("rev-1", "评审员", "rev-1@test.com", "reviewer")

	contentID := createContentViaAPI(t, env, token, "角色受限测试")
	testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "submit_for_review"}, token)

	// 评审员无权终审
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "approve"}, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for reviewer approving, got %d: %s", w.Code, w.Body.String())
	}

	// 转换表之外的操作
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "publish"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for publish from reviewing, got %d: %s", w.Code, w.Body.String())
	}
}

func TestContentAPIAvailableActions(t *testing.T) {
	env := setupContentAPITest(t)
	testutil.SeedTestUser(t, env.DB, "appr-1", "审批人", "approver")
	token := testutil.GenerateTestToken("appr-1", "审批人", "appr-1@test.com", "approver")

	contentID := createContentViaAPI(t, env, token, "可用操作测试")
	testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "submit_for_review"}, token)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/contents/"+contentID+"/actions", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	got := map[string]bool{}
	for _, it := range items {
		entry := it.(map[string]interface{})
		got[entry["action"].(string)] = entry["require_comment"].(bool)
	}
	if len(got) != 3 {
		t.Fatalf("Expected approve/reject/request_revision for approver in reviewing, got %v", got)
	}
	if requireComment, ok := got["reject"]; !ok || !requireComment {
		t.Errorf("Expected reject to require a comment, got %v", got)
	}
	if requireComment, ok := got["approve"]; !ok || requireComment {
		t.Errorf("Expected approve without comment requirement, got %v", got)
	}
}

func TestContentAPIGenerationPipeline(t *testing.T) {
	env := setupContentAPITest(t)
	testutil.SeedTestUser(t, env.DB, "creator-1", "创作者", "reviewer")
	token := testutil.GenerateTestToken("creator-1", "创作者", "creator-1@test.com", "reviewer")

	contentID := createContentViaAPI(t, env, token, "AI 生成测试")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/generation/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 生成中不允许重复开始
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/generation/start", nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 starting generation twice, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/generation/complete",
		map[string]interface{}{"body": "AI 生成的推广正文"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/contents/"+contentID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "generated" {
		t.Errorf("Expected generated, got %v", data["status"])
	}
	if data["body"] != "AI 生成的推广正文" {
		t.Errorf("Expected generated body persisted, got %v", data["body"])
	}
}

func TestContentAPIUpdateLockedWhileReviewing(t *testing.T) {
	env := setupContentAPITest(t)
	testutil.SeedTestUser(t, env.DB, "creator-1", "创作者", "reviewer")
	token := testutil.GenerateTestToken("creator-1", "创作者", "creator-1@test.com", "reviewer")

	contentID := createContentViaAPI(t, env, token, "编辑锁定测试")
	testutil.DoRequest(env.Router, "POST", "/api/v1/contents/"+contentID+"/actions",
		map[string]interface{}{"action": "submit_for_review"}, token)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/contents/"+contentID,
		map[string]interface{}{"body": "审核中偷偷改"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 editing content under review, got %d: %s", w.Code, w.Body.String())
	}
}
