package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

type createSpaceBody struct {
	OwnerID    string            `json:"ownerId"`
	Name       string            `json:"name"`
	EmbedderID string            `json:"embedderId"`
	Labels     map[string]string `json:"labels"`
	PublicRead bool              `json:"publicRead"`
}

func (h handlers) createSpace(c *gin.Context) {
	var body createSpaceBody
	if !bindJSON(c, &body) {
		return
	}
	owner, err := idBytes(body.OwnerID)
	if err != nil {
		badRequest(c, "malformed ownerId")
		return
	}
	embedderID, err := idBytes(body.EmbedderID)
	if err != nil {
		badRequest(c, "malformed embedderId")
		return
	}

	space, err := h.svcs.Spaces.CreateSpace(c.Request.Context(), &services.CreateSpaceRequest{
		OwnerID:    owner,
		Name:       body.Name,
		EmbedderID: embedderID,
		Labels:     body.Labels,
		PublicRead: body.PublicRead,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, spaceViewOf(space))
}

func (h handlers) getSpace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	space, err := h.svcs.Spaces.GetSpace(c.Request.Context(), &services.GetSpaceRequest{SpaceID: id})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, spaceViewOf(space))
}

type updateSpaceBody struct {
	Name          string            `json:"name"`
	PublicRead    *bool             `json:"publicRead"`
	ReplaceLabels map[string]string `json:"replaceLabels"`
	MergeLabels   map[string]string `json:"mergeLabels"`
}

func (h handlers) updateSpace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body updateSpaceBody
	if !bindJSON(c, &body) {
		return
	}

	space, err := h.svcs.Spaces.UpdateSpace(c.Request.Context(), &services.UpdateSpaceRequest{
		SpaceID:    id,
		Name:       body.Name,
		PublicRead: body.PublicRead,
		LabelUpdate: services.LabelUpdate{
			ReplaceLabels: body.ReplaceLabels,
			MergeLabels:   body.MergeLabels,
		},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, spaceViewOf(space))
}

func (h handlers) deleteSpace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcs.Spaces.DeleteSpace(c.Request.Context(), &services.DeleteSpaceRequest{SpaceID: id}); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) listSpaces(c *gin.Context) {
	lr, ok := listParams(c)
	if !ok {
		return
	}
	owner, ok := queryID(c, "ownerId")
	if !ok {
		return
	}
	selectors, ok := labelSelectors(c)
	if !ok {
		return
	}

	resp, err := h.svcs.Spaces.ListSpaces(c.Request.Context(), &services.ListSpacesRequest{
		OwnerID:        owner,
		LabelSelectors: selectors,
		NameFilter:     c.Query("nameFilter"),
		SortBy:         c.Query("sortBy"),
		SortOrder:      c.Query("sortOrder"),
		ListRequest:    lr,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	out := spaceListView{Spaces: make([]spaceView, len(resp.Spaces)), NextPageToken: resp.NextPageToken}
	for i, s := range resp.Spaces {
		out.Spaces[i] = spaceViewOf(s)
	}
	c.JSON(http.StatusOK, out)
}
