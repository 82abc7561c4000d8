package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/security"
	"github.com/gomem/gomem/pkg/services"
)

func newEmbedderService(t *testing.T) (*services.EmbedderService, *memEmbedderRepo, *security.Sealer) {
	t.Helper()
	embedders := newMemEmbedderRepo()
	sealer := security.NewSealer("test-master-key")
	svc := services.NewEmbedderService(embedders, sealer, observability.NewNoopLogger(), observability.NoopStartSpan)
	return svc, embedders, sealer
}

func validEmbedderRequest() *services.CreateEmbedderRequest {
	return &services.CreateEmbedderRequest{
		DisplayName:         "tei-small",
		ProviderType:        "TEI",
		EndpointURL:         "http://tei.local:8080",
		APIPath:             "/embed",
		ModelIdentifier:     "bge-small-en",
		Dimensionality:      384,
		SupportedModalities: []string{"TEXT"},
	}
}

func TestCreateEmbedder_SealsCredentials(t *testing.T) {
	svc, embedders, sealer := newEmbedderService(t)
	caller := uuid.New()

	req := validEmbedderRequest()
	req.Credentials = "secret-token"

	info, err := svc.CreateEmbedder(userCtx(caller), req)
	require.NoError(t, err)
	assert.Equal(t, codec.IDBytes(caller), info.OwnerID)

	id, err := codec.IDFromBytes(info.EmbedderID)
	require.NoError(t, err)
	stored, err := embedders.GetByID(context.Background(), id)
	require.NoError(t, err)

	// The credential never rests in the clear; the sealed blob opens only
	// under the owner scope.
	assert.NotContains(t, string(stored.Credentials), "secret-token")
	plain, err := sealer.Open(stored.Credentials, caller.String())
	require.NoError(t, err)
	assert.Equal(t, "secret-token", plain)

	_, err = sealer.Open(stored.Credentials, uuid.New().String())
	assert.Error(t, err)
}

func TestCreateEmbedder_Validation(t *testing.T) {
	svc, _, _ := newEmbedderService(t)
	ctx := userCtx(uuid.New())

	mutate := []func(*services.CreateEmbedderRequest){
		func(r *services.CreateEmbedderRequest) { r.DisplayName = "" },
		func(r *services.CreateEmbedderRequest) { r.ProviderType = "CUSTOM" },
		func(r *services.CreateEmbedderRequest) { r.EndpointURL = "" },
		func(r *services.CreateEmbedderRequest) { r.ModelIdentifier = "" },
		func(r *services.CreateEmbedderRequest) { r.Dimensionality = 0 },
		func(r *services.CreateEmbedderRequest) { r.SupportedModalities = []string{"SMELL"} },
	}
	for _, m := range mutate {
		req := validEmbedderRequest()
		m(req)
		_, err := svc.CreateEmbedder(ctx, req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	}
}

func TestCreateEmbedder_DuplicateConnection(t *testing.T) {
	svc, _, _ := newEmbedderService(t)
	ctx := userCtx(uuid.New())

	_, err := svc.CreateEmbedder(ctx, validEmbedderRequest())
	require.NoError(t, err)

	// Same triple, even from a different caller.
	_, err = svc.CreateEmbedder(userCtx(uuid.New()), validEmbedderRequest())
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	// A different model on the same endpoint is a distinct embedder.
	req := validEmbedderRequest()
	req.ModelIdentifier = "bge-large-en"
	_, err = svc.CreateEmbedder(ctx, req)
	assert.NoError(t, err)
}

func TestUpdateEmbedder_ImmutableFields(t *testing.T) {
	svc, _, _ := newEmbedderService(t)
	ctx := userCtx(uuid.New())

	info, err := svc.CreateEmbedder(ctx, validEmbedderRequest())
	require.NoError(t, err)

	_, err = svc.UpdateEmbedder(ctx, &services.UpdateEmbedderRequest{
		EmbedderID:   info.EmbedderID,
		ProviderType: "OPENAI",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.UpdateEmbedder(ctx, &services.UpdateEmbedderRequest{
		EmbedderID:     info.EmbedderID,
		Dimensionality: 768,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUpdateEmbedder_MutableFields(t *testing.T) {
	svc, embedders, sealer := newEmbedderService(t)
	caller := uuid.New()
	ctx := userCtx(caller)

	req := validEmbedderRequest()
	req.Labels = map[string]string{"tier": "dev"}
	info, err := svc.CreateEmbedder(ctx, req)
	require.NoError(t, err)

	updated, err := svc.UpdateEmbedder(ctx, &services.UpdateEmbedderRequest{
		EmbedderID:  info.EmbedderID,
		DisplayName: "tei-small-v2",
		Version:     "2.1",
		Credentials: "rotated-token",
		LabelUpdate: services.LabelUpdate{ReplaceLabels: map[string]string{"tier": "prod"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "tei-small-v2", updated.DisplayName)
	assert.Equal(t, "2.1", updated.Version)
	assert.Equal(t, map[string]string{"tier": "prod"}, updated.Labels)
	assert.Equal(t, "TEI", updated.ProviderType)

	id, err := codec.IDFromBytes(info.EmbedderID)
	require.NoError(t, err)
	stored, err := embedders.GetByID(context.Background(), id)
	require.NoError(t, err)
	plain, err := sealer.Open(stored.Credentials, caller.String())
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", plain)
}

func TestEmbedder_OwnershipGates(t *testing.T) {
	svc, _, _ := newEmbedderService(t)
	owner := uuid.New()

	info, err := svc.CreateEmbedder(userCtx(owner), validEmbedderRequest())
	require.NoError(t, err)

	stranger := userCtx(uuid.New())

	_, err = svc.GetEmbedder(stranger, &services.GetEmbedderRequest{EmbedderID: info.EmbedderID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = svc.UpdateEmbedder(stranger, &services.UpdateEmbedderRequest{
		EmbedderID:  info.EmbedderID,
		DisplayName: "hijacked",
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	err = svc.DeleteEmbedder(stranger, &services.DeleteEmbedderRequest{EmbedderID: info.EmbedderID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// Root reaches any owner's embedder.
	_, err = svc.GetEmbedder(rootCtx(uuid.New()), &services.GetEmbedderRequest{EmbedderID: info.EmbedderID})
	assert.NoError(t, err)
}

func TestListEmbedders_ProviderFilter(t *testing.T) {
	svc, _, _ := newEmbedderService(t)
	caller := uuid.New()
	ctx := userCtx(caller)

	tei := validEmbedderRequest()
	_, err := svc.CreateEmbedder(ctx, tei)
	require.NoError(t, err)

	openai := validEmbedderRequest()
	openai.ProviderType = "OPENAI"
	openai.EndpointURL = "https://api.openai.com"
	openai.APIPath = "/v1/embeddings"
	openai.ModelIdentifier = "text-embedding-3-small"
	_, err = svc.CreateEmbedder(ctx, openai)
	require.NoError(t, err)

	resp, err := svc.ListEmbedders(ctx, &services.ListEmbeddersRequest{ProviderType: "OPENAI"})
	require.NoError(t, err)
	require.Len(t, resp.Embedders, 1)
	assert.Equal(t, "OPENAI", resp.Embedders[0].ProviderType)

	_, err = svc.ListEmbedders(ctx, &services.ListEmbeddersRequest{ProviderType: "CUSTOM"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
