package service

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
)

const graphVersion = "/v18.0"

type graphCall struct {
	Method string
	Path   string
	Params url.Values
}

// fakeGraph 按 "METHOD /path" 返回固定 JSON，未注册的路径返回 Graph 错误信封
type fakeGraph struct {
	mu     sync.Mutex
	routes map[string]string
	calls  []graphCall
	srv    *httptest.Server
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()

	g := &fakeGraph{routes: map[string]string{}}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		path := strings.TrimPrefix(r.URL.Path, graphVersion)
		key := r.Method + " " + path

		g.mu.Lock()
		g.calls = append(g.calls, graphCall{Method: r.Method, Path: path, Params: r.Form})
		body, ok := g.routes[key]
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":{"message":"Unknown path %s","type":"GraphMethodException","code":100,"fbtrace_id":"trace"}}`, path)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) on(method, path, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[method+" "+path] = body
}

func (g *fakeGraph) URL() string {
	return g.srv.URL + graphVersion
}

func (g *fakeGraph) client() *facebook.Client {
	return facebook.NewClient(g.URL(), 5*time.Second)
}

func (g *fakeGraph) Calls(method, path string) []graphCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []graphCall
	for _, c := range g.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGraph) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
