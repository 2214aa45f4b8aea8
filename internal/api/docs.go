package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Armour007/grc-backend/internal/grc"
)

// openAPIDoc is built once at startup from the resource and access tables,
// so role requirements in the document cannot drift from the route guards.
func openAPIDoc() map[string]any {
	paths := map[string]any{
		"/api/auth/register": map[string]any{"post": op("Register an account", nil, false, "201", "400")},
		"/api/auth/login":    map[string]any{"post": op("Sign in", nil, false, "200", "401", "429")},
		"/api/auth/profile":  map[string]any{"get": op("Caller's own record", nil, true, "200", "401")},
		"/api/users": map[string]any{
			"get": op("List users", grc.UserDirectoryReaders, true, "200", "401", "403"),
		},
		"/api/users/profile": map[string]any{"put": op("Update own profile", nil, true, "200", "400", "401")},
		"/api/users/{id}": map[string]any{
			"get":    op("Get a user", nil, true, "200", "401", "403", "404"),
			"put":    op("Update a user", grc.UserAdmins, true, "200", "400", "401", "403", "404"),
			"delete": op("Delete a user", grc.UserAdmins, true, "200", "401", "403", "404"),
		},
		"/api/policies/{id}/attest": map[string]any{
			"post": op("Attest a policy", nil, true, "200", "401", "404"),
		},
	}
	for _, res := range grc.Resources {
		perm := grc.Access[res]
		name := string(res)
		paths["/api/"+name] = map[string]any{
			"get":  op("List "+name, nil, true, "200", "401"),
			"post": op("Create "+singular(name), perm.Create, true, "201", "400", "401", "403"),
		}
		paths["/api/"+name+"/{id}"] = map[string]any{
			"get":    op("Get "+singular(name), nil, true, "200", "401", "404"),
			"put":    op("Update "+singular(name), perm.Update, true, "200", "400", "401", "403", "404"),
			"delete": op("Delete "+singular(name), perm.Delete, true, "200", "401", "403", "404"),
		}
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "GRC API",
			"version":     "1.0.0",
			"description": "Governance, risk and compliance records with role-gated CRUD.",
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]any{
				"Error": map[string]any{"type": "object", "properties": map[string]any{
					"error": map[string]any{"type": "string"},
				}},
			},
		},
		"paths": paths,
	}
}

func op(summary string, roles grc.RoleSet, secured bool, codes ...string) map[string]any {
	responses := map[string]any{}
	for _, code := range codes {
		if strings.HasPrefix(code, "2") {
			responses[code] = map[string]any{"description": http.StatusText(atoi(code))}
			continue
		}
		responses[code] = map[string]any{
			"description": http.StatusText(atoi(code)),
			"content": map[string]any{"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Error"},
			}},
		}
	}
	o := map[string]any{"summary": summary, "responses": responses}
	if secured {
		o["security"] = []map[string][]string{{"bearerAuth": {}}}
	}
	if roles != nil {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		o["x-allowed-roles"] = names
	}
	return o
}

func atoi(code string) int {
	n, _ := strconv.Atoi(code)
	return n
}

func singular(name string) string {
	switch name {
	case "evidence":
		return "evidence"
	case "bcm":
		return "BCM plan"
	case "policies":
		return "policy"
	}
	return strings.TrimSuffix(name, "s")
}

// OpenAPIJSON serves the API description.
func (s *Server) OpenAPIJSON(c *gin.Context) {
	c.JSON(http.StatusOK, s.docs)
}
