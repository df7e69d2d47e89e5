package audit

import (
	"strings"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
)

// ActionResource holds the action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Route overrides for endpoints whose verb does not describe the action.
// Login, refresh and logout are public and audited by the auth service itself.
var routeOverrides = map[string]ActionResource{
	"PATCH /api/accounts/{accountId}/state": {Action: domain.ActionStateChange, Resource: "account"},
}

// ParseRoute returns the action and resource for a method and chi route pattern
// such as "GET /api/accounts/{accountId}".
// Action is derived from the method: get, list, create, update, delete.
// Resource is the last literal path segment, singularised (accounts -> account).
func ParseRoute(method, pattern string) ActionResource {
	if ar, ok := routeOverrides[method+" "+pattern]; ok {
		return ar
	}
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	resource := ""
	endsWithParam := false
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "{") {
			if i == len(segs)-1 {
				endsWithParam = true
			}
			continue
		}
		if s == "api" {
			break
		}
		resource = singular(s)
		break
	}
	if resource == "" {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method, endsWithParam), Resource: resource}
}

func singular(s string) string {
	s = strings.ToLower(s)
	if strings.HasSuffix(s, "s") && len(s) > 1 {
		return s[:len(s)-1]
	}
	return s
}

func methodToAction(method string, item bool) string {
	switch strings.ToUpper(method) {
	case "GET":
		if item {
			return "get"
		}
		return "list"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
