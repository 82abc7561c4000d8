package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor authenticates every unary RPC through the
// x-api-key metadata entry and installs the principal into the call
// context. Methods in unauthenticatedMethods bypass authentication and run
// with no principal; system init is the sole such method.
func UnaryServerInterceptor(authn *Authenticator, unauthenticatedMethods ...string) grpc.UnaryServerInterceptor {
	allowlist := make(map[string]struct{}, len(unauthenticatedMethods))
	for _, m := range unauthenticatedMethods {
		allowlist[m] = struct{}{}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := allowlist[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		values := md.Get(HeaderName)
		if len(values) == 0 || values[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "missing api key")
		}

		principal, err := authn.Authenticate(ctx, values[0])
		if err != nil {
			return nil, err
		}
		return handler(NewContext(ctx, principal), req)
	}
}
