package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

// Services bundles the business layer the handlers dispatch into. Each route
// maps to exactly one service method; the handlers only translate between
// the HTTP surface and the DTO shapes.
type Services struct {
	System    *services.SystemService
	Users     *services.UserService
	Keys      *services.APIKeyService
	Embedders *services.EmbedderService
	Spaces    *services.SpaceService
	Memories  *services.MemoryService
}

type handlers struct {
	svcs Services
}

func listParams(c *gin.Context) (services.ListRequest, bool) {
	var lr services.ListRequest
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "maxResults must be a non-negative integer")
			return lr, false
		}
		lr.MaxResults = n
	}
	lr.PageToken = c.Query("pageToken")
	return lr, true
}

// labelSelectors parses repeated labelSelector=key=value query parameters.
func labelSelectors(c *gin.Context) (map[string]string, bool) {
	values := c.QueryArray("labelSelector")
	if len(values) == 0 {
		return nil, true
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			badRequest(c, "labelSelector must be key=value")
			return nil, false
		}
		out[k] = val
	}
	return out, true
}

// pathID parses a canonical-hex path parameter, aborting with 400 on
// malformed input so the service never sees it.
func pathID(c *gin.Context, name string) ([]byte, bool) {
	raw := c.Param(name)
	b, err := idBytes(raw)
	if err != nil || b == nil {
		badRequest(c, "malformed id in path")
		return nil, false
	}
	return b, true
}

// queryID parses an optional canonical-hex query parameter.
func queryID(c *gin.Context, name string) ([]byte, bool) {
	b, err := idBytes(c.Query(name))
	if err != nil {
		badRequest(c, "malformed "+name)
		return nil, false
	}
	return b, true
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		badRequest(c, "malformed request body")
		return false
	}
	return true
}
