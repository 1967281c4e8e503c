package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/pkg/validation"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	_ = validation.Register()
}

// testEnv 每个测试一套独立的内存库和仓储
type testEnv struct {
	DB      *gorm.DB
	Cfg     *config.Config
	User    *repository.UserRepository
	Session *repository.SessionRepository
	RBAC    *repository.RBACRepository
	Sub     *repository.SubscriptionRepository
	FB      *repository.FacebookRepository
	Camp    *repository.CampaignRepository
	Insight *repository.InsightRepository
	Lib     *repository.AdLibraryRepository
	Job     *repository.SyncJobRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	return &testEnv{
		DB: db,
		Cfg: &config.Config{
			JWT:      config.JWTConfig{Secret: testSecret},
			Frontend: config.FrontendConfig{URL: "http://localhost:3000"},
		},
		User:    repository.NewUserRepository(db),
		Session: repository.NewSessionRepository(db),
		RBAC:    repository.NewRBACRepository(db),
		Sub:     repository.NewSubscriptionRepository(db),
		FB:      repository.NewFacebookRepository(db),
		Camp:    repository.NewCampaignRepository(db),
		Insight: repository.NewInsightRepository(db),
		Lib:     repository.NewAdLibraryRepository(db),
		Job:     repository.NewSyncJobRepository(db),
	}
}

func (e *testEnv) rbacService() *service.RBACService {
	return service.NewRBACService(e.DB, e.RBAC, e.User, e.Sub)
}

func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func dataList(t *testing.T, resp response.Response) []interface{} {
	t.Helper()
	data, ok := resp.Data.([]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

// request 发送请求，body 非 nil 时按 JSON 编码
func request(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type graphCall struct {
	Method string
	Path   string
}

// graphStub 模拟 Graph API，未注册的路径返回错误信封
type graphStub struct {
	mu     sync.Mutex
	routes map[string]string
	calls  []graphCall
	srv    *httptest.Server
}

func newGraphStub(t *testing.T) *graphStub {
	t.Helper()

	g := &graphStub{routes: map[string]string{}}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v18.0")

		g.mu.Lock()
		g.calls = append(g.calls, graphCall{Method: r.Method, Path: path})
		body, ok := g.routes[r.Method+" "+path]
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":{"message":"Unsupported request %s","type":"GraphMethodException","code":100}}`, path)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *graphStub) on(method, path, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[method+" "+path] = body
}

func (g *graphStub) URL() string {
	return g.srv.URL + "/v18.0"
}

func (g *graphStub) client() *facebook.Client {
	return facebook.NewClient(g.URL(), 5*time.Second)
}

func (g *graphStub) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
