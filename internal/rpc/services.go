package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gomem/gomem/pkg/services"
)

// InitSystemMethod is the only method reachable without an API key.
const InitSystemMethod = "/gomem.v1.SystemService/InitSystem"

// Empty is the response body for delete methods, which carry no payload.
type Empty struct{}

// Services bundles the business layer handed to the server. Every descriptor
// dispatches straight into these; there is no generated stub layer.
type Services struct {
	System    *services.SystemService
	Users     *services.UserService
	Keys      *services.APIKeyService
	Embedders *services.EmbedderService
	Spaces    *services.SpaceService
	Memories  *services.MemoryService
}

// unary adapts a typed service method into a grpc.MethodDesc handler. The
// service instance is captured in the closure, so descriptors register with a
// nil implementation value.
func unary[Req any, Res any](fullMethod string, call func(context.Context, *Req) (*Res, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, req.(*Req))
		})
	}
}

// emptied lifts an error-only delete method into the (*Empty, error) shape
// unary expects.
func emptied[Req any](call func(context.Context, *Req) error) func(context.Context, *Req) (*Empty, error) {
	return func(ctx context.Context, req *Req) (*Empty, error) {
		if err := call(ctx, req); err != nil {
			return nil, err
		}
		return &Empty{}, nil
	}
}

func serviceDescs(svcs Services) []*grpc.ServiceDesc {
	return []*grpc.ServiceDesc{
		{
			ServiceName: "gomem.v1.SystemService",
			Methods: []grpc.MethodDesc{
				{MethodName: "InitSystem", Handler: unary(InitSystemMethod, svcs.System.InitSystem)},
			},
		},
		{
			ServiceName: "gomem.v1.UserService",
			Methods: []grpc.MethodDesc{
				{MethodName: "CreateUser", Handler: unary("/gomem.v1.UserService/CreateUser", svcs.Users.CreateUser)},
				{MethodName: "GetUser", Handler: unary("/gomem.v1.UserService/GetUser", svcs.Users.GetUser)},
				{MethodName: "ListUsers", Handler: unary("/gomem.v1.UserService/ListUsers", svcs.Users.ListUsers)},
			},
		},
		{
			ServiceName: "gomem.v1.ApiKeyService",
			Methods: []grpc.MethodDesc{
				{MethodName: "CreateApiKey", Handler: unary("/gomem.v1.ApiKeyService/CreateApiKey", svcs.Keys.CreateApiKey)},
				{MethodName: "UpdateApiKey", Handler: unary("/gomem.v1.ApiKeyService/UpdateApiKey", svcs.Keys.UpdateApiKey)},
				{MethodName: "DeleteApiKey", Handler: unary("/gomem.v1.ApiKeyService/DeleteApiKey", emptied(svcs.Keys.DeleteApiKey))},
				{MethodName: "ListApiKeys", Handler: unary("/gomem.v1.ApiKeyService/ListApiKeys", svcs.Keys.ListApiKeys)},
			},
		},
		{
			ServiceName: "gomem.v1.EmbedderService",
			Methods: []grpc.MethodDesc{
				{MethodName: "CreateEmbedder", Handler: unary("/gomem.v1.EmbedderService/CreateEmbedder", svcs.Embedders.CreateEmbedder)},
				{MethodName: "GetEmbedder", Handler: unary("/gomem.v1.EmbedderService/GetEmbedder", svcs.Embedders.GetEmbedder)},
				{MethodName: "UpdateEmbedder", Handler: unary("/gomem.v1.EmbedderService/UpdateEmbedder", svcs.Embedders.UpdateEmbedder)},
				{MethodName: "DeleteEmbedder", Handler: unary("/gomem.v1.EmbedderService/DeleteEmbedder", emptied(svcs.Embedders.DeleteEmbedder))},
				{MethodName: "ListEmbedders", Handler: unary("/gomem.v1.EmbedderService/ListEmbedders", svcs.Embedders.ListEmbedders)},
			},
		},
		{
			ServiceName: "gomem.v1.SpaceService",
			Methods: []grpc.MethodDesc{
				{MethodName: "CreateSpace", Handler: unary("/gomem.v1.SpaceService/CreateSpace", svcs.Spaces.CreateSpace)},
				{MethodName: "GetSpace", Handler: unary("/gomem.v1.SpaceService/GetSpace", svcs.Spaces.GetSpace)},
				{MethodName: "UpdateSpace", Handler: unary("/gomem.v1.SpaceService/UpdateSpace", svcs.Spaces.UpdateSpace)},
				{MethodName: "DeleteSpace", Handler: unary("/gomem.v1.SpaceService/DeleteSpace", emptied(svcs.Spaces.DeleteSpace))},
				{MethodName: "ListSpaces", Handler: unary("/gomem.v1.SpaceService/ListSpaces", svcs.Spaces.ListSpaces)},
			},
		},
		{
			ServiceName: "gomem.v1.MemoryService",
			Methods: []grpc.MethodDesc{
				{MethodName: "CreateMemory", Handler: unary("/gomem.v1.MemoryService/CreateMemory", svcs.Memories.CreateMemory)},
				{MethodName: "GetMemory", Handler: unary("/gomem.v1.MemoryService/GetMemory", svcs.Memories.GetMemory)},
				{MethodName: "DeleteMemory", Handler: unary("/gomem.v1.MemoryService/DeleteMemory", emptied(svcs.Memories.DeleteMemory))},
				{MethodName: "ListMemories", Handler: unary("/gomem.v1.MemoryService/ListMemories", svcs.Memories.ListMemories)},
			},
		},
	}
}
