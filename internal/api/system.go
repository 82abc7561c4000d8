package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

// initSystem handles POST /v1/system/init. The route is unauthenticated;
// the service itself guarantees single-shot semantics.
func (h handlers) initSystem(c *gin.Context) {
	resp, err := h.svcs.System.InitSystem(c.Request.Context(), &services.InitSystemRequest{})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, initSystemViewOf(resp))
}

func (h handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
