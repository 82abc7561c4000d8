package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

type createApiKeyBody struct {
	OwnerID   string            `json:"ownerId"`
	Labels    map[string]string `json:"labels"`
	ExpiresAt int64             `json:"expiresAt"`
}

func (h handlers) createApiKey(c *gin.Context) {
	var body createApiKeyBody
	if !bindJSON(c, &body) {
		return
	}
	owner, err := idBytes(body.OwnerID)
	if err != nil {
		badRequest(c, "malformed ownerId")
		return
	}

	resp, err := h.svcs.Keys.CreateApiKey(c.Request.Context(), &services.CreateApiKeyRequest{
		OwnerID:   owner,
		Labels:    body.Labels,
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, createApiKeyView{
		ApiKey: apiKeyViewOf(resp.ApiKey),
		RawKey: resp.RawKey,
	})
}

type updateApiKeyBody struct {
	Status        string            `json:"status"`
	ReplaceLabels map[string]string `json:"replaceLabels"`
	MergeLabels   map[string]string `json:"mergeLabels"`
}

func (h handlers) updateApiKey(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body updateApiKeyBody
	if !bindJSON(c, &body) {
		return
	}

	key, err := h.svcs.Keys.UpdateApiKey(c.Request.Context(), &services.UpdateApiKeyRequest{
		ApiKeyID: id,
		Status:   body.Status,
		LabelUpdate: services.LabelUpdate{
			ReplaceLabels: body.ReplaceLabels,
			MergeLabels:   body.MergeLabels,
		},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiKeyViewOf(key))
}

func (h handlers) deleteApiKey(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcs.Keys.DeleteApiKey(c.Request.Context(), &services.DeleteApiKeyRequest{ApiKeyID: id}); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) listApiKeys(c *gin.Context) {
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

	resp, err := h.svcs.Keys.ListApiKeys(c.Request.Context(), &services.ListApiKeysRequest{
		OwnerID:        owner,
		LabelSelectors: selectors,
		ListRequest:    lr,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	out := apiKeyListView{ApiKeys: make([]apiKeyView, len(resp.ApiKeys)), NextPageToken: resp.NextPageToken}
	for i, k := range resp.ApiKeys {
		out.ApiKeys[i] = apiKeyViewOf(k)
	}
	c.JSON(http.StatusOK, out)
}
