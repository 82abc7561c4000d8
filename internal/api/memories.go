package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

type createMemoryBody struct {
	SpaceID            string            `json:"spaceId"`
	OriginalContentRef string            `json:"originalContentRef"`
	ContentType        string            `json:"contentType"`
	Metadata           map[string]string `json:"metadata"`
}

func (h handlers) createMemory(c *gin.Context) {
	var body createMemoryBody
	if !bindJSON(c, &body) {
		return
	}
	spaceID, err := idBytes(body.SpaceID)
	if err != nil {
		badRequest(c, "malformed spaceId")
		return
	}

	memory, err := h.svcs.Memories.CreateMemory(c.Request.Context(), &services.CreateMemoryRequest{
		SpaceID:            spaceID,
		OriginalContentRef: body.OriginalContentRef,
		ContentType:        body.ContentType,
		Metadata:           body.Metadata,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, memoryViewOf(memory))
}

func (h handlers) getMemory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	memory, err := h.svcs.Memories.GetMemory(c.Request.Context(), &services.GetMemoryRequest{MemoryID: id})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, memoryViewOf(memory))
}

func (h handlers) deleteMemory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcs.Memories.DeleteMemory(c.Request.Context(), &services.DeleteMemoryRequest{MemoryID: id}); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listMemories handles GET /v1/spaces/:id/memories.
func (h handlers) listMemories(c *gin.Context) {
	spaceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lr, ok := listParams(c)
	if !ok {
		return
	}

	resp, err := h.svcs.Memories.ListMemories(c.Request.Context(), &services.ListMemoriesRequest{
		SpaceID:     spaceID,
		ListRequest: lr,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	out := memoryListView{Memories: make([]memoryView, len(resp.Memories)), NextPageToken: resp.NextPageToken}
	for i, m := range resp.Memories {
		out.Memories[i] = memoryViewOf(m)
	}
	c.JSON(http.StatusOK, out)
}
