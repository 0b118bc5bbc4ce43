// Service descriptor and client for arxml.v1.ArxmlService
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "arxml.v1.ArxmlService"

// Method names of ArxmlService. Every request and response is a google.protobuf.Struct.
const (
	MethodOpenModel                 = "OpenModel"
	MethodCloseModel                = "CloseModel"
	MethodCreateFile                = "CreateFile"
	MethodLoadBuffer                = "LoadBuffer"
	MethodSerializeFiles            = "SerializeFiles"
	MethodGetElement                = "GetElement"
	MethodIdentifiableElements      = "IdentifiableElements"
	MethodCheckReferences           = "CheckReferences"
	MethodCheckVersionCompatibility = "CheckVersionCompatibility"
	MethodSort                      = "Sort"
	MethodStats                     = "Stats"
)

// FullMethod returns the gRPC path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ArxmlServiceServer is the server API for ArxmlService
type ArxmlServiceServer interface {
	OpenModel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseModel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadBuffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SerializeFiles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetElement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IdentifiableElements(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckReferences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckVersionCompatibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sort(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ArxmlServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ArxmlServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ArxmlServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ArxmlService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ArxmlServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodOpenModel, ArxmlServiceServer.OpenModel),
		unaryHandler(MethodCloseModel, ArxmlServiceServer.CloseModel),
		unaryHandler(MethodCreateFile, ArxmlServiceServer.CreateFile),
		unaryHandler(MethodLoadBuffer, ArxmlServiceServer.LoadBuffer),
		unaryHandler(MethodSerializeFiles, ArxmlServiceServer.SerializeFiles),
		unaryHandler(MethodGetElement, ArxmlServiceServer.GetElement),
		unaryHandler(MethodIdentifiableElements, ArxmlServiceServer.IdentifiableElements),
		unaryHandler(MethodCheckReferences, ArxmlServiceServer.CheckReferences),
		unaryHandler(MethodCheckVersionCompatibility, ArxmlServiceServer.CheckVersionCompatibility),
		unaryHandler(MethodSort, ArxmlServiceServer.Sort),
		unaryHandler(MethodStats, ArxmlServiceServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arxml/v1/arxml.proto",
}

// RegisterArxmlServiceServer registers srv on s
func RegisterArxmlServiceServer(s grpc.ServiceRegistrar, srv ArxmlServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls ArxmlService over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with the given request fields
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
