package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/services"
)

type createEmbedderBody struct {
	OwnerID             string            `json:"ownerId"`
	DisplayName         string            `json:"displayName"`
	Description         string            `json:"description"`
	ProviderType        string            `json:"providerType"`
	EndpointURL         string            `json:"endpointUrl"`
	APIPath             string            `json:"apiPath"`
	ModelIdentifier     string            `json:"modelIdentifier"`
	Dimensionality      int32             `json:"dimensionality"`
	MaxSequenceLength   int32             `json:"maxSequenceLength"`
	SupportedModalities []string          `json:"supportedModalities"`
	Credentials         string            `json:"credentials"`
	Labels              map[string]string `json:"labels"`
	Version             string            `json:"version"`
	MonitoringEndpoint  string            `json:"monitoringEndpoint"`
}

func (h handlers) createEmbedder(c *gin.Context) {
	var body createEmbedderBody
	if !bindJSON(c, &body) {
		return
	}
	owner, err := idBytes(body.OwnerID)
	if err != nil {
		badRequest(c, "malformed ownerId")
		return
	}

	embedder, err := h.svcs.Embedders.CreateEmbedder(c.Request.Context(), &services.CreateEmbedderRequest{
		OwnerID:             owner,
		DisplayName:         body.DisplayName,
		Description:         body.Description,
		ProviderType:        body.ProviderType,
		EndpointURL:         body.EndpointURL,
		APIPath:             body.APIPath,
		ModelIdentifier:     body.ModelIdentifier,
		Dimensionality:      body.Dimensionality,
		MaxSequenceLength:   body.MaxSequenceLength,
		SupportedModalities: body.SupportedModalities,
		Credentials:         body.Credentials,
		Labels:              body.Labels,
		Version:             body.Version,
		MonitoringEndpoint:  body.MonitoringEndpoint,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, embedderViewOf(embedder))
}

func (h handlers) getEmbedder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	embedder, err := h.svcs.Embedders.GetEmbedder(c.Request.Context(), &services.GetEmbedderRequest{EmbedderID: id})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, embedderViewOf(embedder))
}

type updateEmbedderBody struct {
	DisplayName        string            `json:"displayName"`
	Description        string            `json:"description"`
	ProviderType       string            `json:"providerType"`
	Dimensionality     int32             `json:"dimensionality"`
	MaxSequenceLength  int32             `json:"maxSequenceLength"`
	Credentials        string            `json:"credentials"`
	Version            string            `json:"version"`
	MonitoringEndpoint string            `json:"monitoringEndpoint"`
	ReplaceLabels      map[string]string `json:"replaceLabels"`
	MergeLabels        map[string]string `json:"mergeLabels"`
}

func (h handlers) updateEmbedder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body updateEmbedderBody
	if !bindJSON(c, &body) {
		return
	}

	embedder, err := h.svcs.Embedders.UpdateEmbedder(c.Request.Context(), &services.UpdateEmbedderRequest{
		EmbedderID:         id,
		DisplayName:        body.DisplayName,
		Description:        body.Description,
		ProviderType:       body.ProviderType,
		Dimensionality:     body.Dimensionality,
		MaxSequenceLength:  body.MaxSequenceLength,
		Credentials:        body.Credentials,
		Version:            body.Version,
		MonitoringEndpoint: body.MonitoringEndpoint,
		LabelUpdate: services.LabelUpdate{
			ReplaceLabels: body.ReplaceLabels,
			MergeLabels:   body.MergeLabels,
		},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, embedderViewOf(embedder))
}

func (h handlers) deleteEmbedder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcs.Embedders.DeleteEmbedder(c.Request.Context(), &services.DeleteEmbedderRequest{EmbedderID: id}); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) listEmbedders(c *gin.Context) {
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

	resp, err := h.svcs.Embedders.ListEmbedders(c.Request.Context(), &services.ListEmbeddersRequest{
		OwnerID:        owner,
		ProviderType:   c.Query("providerType"),
		LabelSelectors: selectors,
		ListRequest:    lr,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	out := embedderListView{Embedders: make([]embedderView, len(resp.Embedders)), NextPageToken: resp.NextPageToken}
	for i, e := range resp.Embedders {
		out.Embedders[i] = embedderViewOf(e)
	}
	c.JSON(http.StatusOK, out)
}
