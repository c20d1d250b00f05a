package main

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"testing"

	"mebel-erp/internal/config"
	"mebel-erp/internal/http/docs"
	"mebel-erp/internal/http/handler"
	"mebel-erp/internal/observability/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

func TestOpenAPIDriftCheck(t *testing.T) {
	deps := RouterDeps{
		Cfg:          &config.Config{OTELServiceName: "test", AppEnv: "dev"},
		Log:          logger.Nop(),
		MeHandler:    &handler.MeHandler{},
		UserHandler:  &handler.UserHandler{},
		RoleHandler:  &handler.RoleHandler{},
		StageHandler: &handler.StagePermissionHandler{},
		DebugHandler: &handler.DebugHandler{},
	}
	r := buildRouter(deps)

	doc, err := openapi3.NewLoader().LoadFromData(docs.GetSpecBytes())
	if err != nil {
		t.Fatalf("failed to load OpenAPI spec: %v", err)
	}

	documentedRoutes := make(map[string]bool)
	for path, pathItem := range doc.Paths.Map() {
		for method := range pathItem.Operations() {
			documentedRoutes[fmt.Sprintf("%s %s", strings.ToUpper(method), path)] = true
		}
	}

	implementedRoutes := make(map[string]bool)
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/debug") {
			return nil
		}
		m := strings.ToUpper(method)
		if m != "GET" && m != "POST" && m != "PUT" && m != "PATCH" && m != "DELETE" {
			return nil
		}
		implementedRoutes[fmt.Sprintf("%s %s", m, normalizeChiPath(route))] = true
		return nil
	}

	if err := chi.Walk(r, walkFunc); err != nil {
		t.Fatalf("failed to walk chi router: %v", err)
	}

	var missing, stale []string
	for route := range implementedRoutes {
		if !documentedRoutes[route] {
			missing = append(missing, route)
		}
	}
	for route := range documentedRoutes {
		if !implementedRoutes[route] {
			stale = append(stale, route)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		t.Errorf("Drift detected! The following routes are implemented but NOT documented in OpenAPI:\n%s",
			strings.Join(missing, "\n"))
	}
	if len(stale) > 0 {
		sort.Strings(stale)
		t.Errorf("Drift detected! The following routes are documented but NOT implemented:\n%s",
			strings.Join(stale, "\n"))
	}
}

// normalizeChiPath removes regex from chi parameters and trailing slashes
func normalizeChiPath(path string) string {
	re := regexp.MustCompile(`\{([^:]+):[^}]+\}`)
	normalized := re.ReplaceAllString(path, "{$1}")

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}
