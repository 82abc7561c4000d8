package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

// getUser handles GET /v1/users/:id. The email query parameter is the
// alternative lookup; when present the path segment is ignored.
func (h handlers) getUser(c *gin.Context) {
	req := &services.GetUserRequest{}
	if email := c.Query("email"); email != "" {
		req.Email = email
	} else {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		req.UserID = id
	}

	user, err := h.svcs.Users.GetUser(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, userViewOf(user))
}
