package grpc

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ReflectionClient queries gRPC servers for their schema using server reflection.
type ReflectionClient struct {
	target string
	useTLS bool
}

// ReflectionResult contains the discovered schema.
type ReflectionResult struct {
	// Files holds every file reachable from the listed services, dependencies
	// before dependents.
	Files    *descriptorpb.FileDescriptorSet
	Services []string
}

// NewReflectionClient creates a new reflection client for the given target URL.
func NewReflectionClient(target *url.URL) *ReflectionClient {
	return &ReflectionClient{
		target: ToGRPCTarget(target),
		useTLS: ShouldUseTLS(target),
	}
}

// NewReflectionClientFromString creates a new reflection client from a target string.
func NewReflectionClientFromString(target string) (*ReflectionClient, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse target URL")
	}
	return NewReflectionClient(parsed), nil
}

// Discover lists the target's services and collects the files that declare
// them together with all their dependencies.
func (c *ReflectionClient) Discover(ctx context.Context) (*ReflectionResult, error) {
	conn, err := grpc.NewClient(c.target, grpc.WithTransportCredentials(transportCredentials(c.useTLS)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gRPC client")
	}
	defer conn.Close()

	client := reflectionpb.NewServerReflectionClient(conn)

	stream, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reflection stream")
	}
	defer stream.CloseSend()

	resp, err := roundTrip(stream, &reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list services")
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return nil, errors.New("unexpected response type")
	}

	// The reflection service itself is not part of the schema
	var services []string
	for _, svc := range listResp.GetService() {
		name := svc.GetName()
		if !strings.HasPrefix(name, "grpc.reflection.") {
			services = append(services, name)
		}
	}
	sort.Strings(services)
	slog.Debug("Discovered services", "target", c.target, "services", services)

	collected := make(map[string]*descriptorpb.FileDescriptorProto)
	for _, svcName := range services {
		err := c.fetch(stream, &reflectionpb.ServerReflectionRequest{
			MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{
				FileContainingSymbol: svcName,
			},
		}, collected)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get file descriptors for %s", svcName)
		}
	}

	return &ReflectionResult{
		Files:    &descriptorpb.FileDescriptorSet{File: orderFiles(collected)},
		Services: services,
	}, nil
}

func roundTrip(stream reflectionpb.ServerReflection_ServerReflectionInfoClient, req *reflectionpb.ServerReflectionRequest) (*reflectionpb.ServerReflectionResponse, error) {
	if err := stream.Send(req); err != nil {
		return nil, errors.Wrap(err, "failed to send reflection request")
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to receive reflection response")
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		return nil, errors.Newf("reflection error: %s", errResp.GetErrorMessage())
	}
	return resp, nil
}

// fetch sends req and adds every returned file, then requests the
// dependencies that are still missing.
func (c *ReflectionClient) fetch(
	stream reflectionpb.ServerReflection_ServerReflectionInfoClient,
	req *reflectionpb.ServerReflectionRequest,
	collected map[string]*descriptorpb.FileDescriptorProto,
) error {
	resp, err := roundTrip(stream, req)
	if err != nil {
		return err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return errors.New("unexpected response type")
	}

	var missing []string
	for _, fdBytes := range fdResp.GetFileDescriptorProto() {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(fdBytes, fd); err != nil {
			return errors.Wrap(err, "failed to unmarshal file descriptor")
		}
		if _, exists := collected[fd.GetName()]; exists {
			continue
		}
		collected[fd.GetName()] = fd
		missing = append(missing, fd.GetDependency()...)
	}

	for _, dep := range missing {
		if _, exists := collected[dep]; exists {
			continue
		}
		err := c.fetch(stream, &reflectionpb.ServerReflectionRequest{
			MessageRequest: &reflectionpb.ServerReflectionRequest_FileByFilename{
				FileByFilename: dep,
			},
		}, collected)
		if err != nil {
			// Some servers do not expose well-known types; their references
			// surface later as resolution errors.
			slog.Warn("Failed to fetch dependency", "file", dep, "error", err)
		}
	}

	return nil
}

// orderFiles returns the files sorted by name with every dependency placed
// before the files importing it.
func orderFiles(files map[string]*descriptorpb.FileDescriptorProto) []*descriptorpb.FileDescriptorProto {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var ordered []*descriptorpb.FileDescriptorProto
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		fd, ok := files[name]
		if !ok || visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range fd.GetDependency() {
			visit(dep)
		}
		ordered = append(ordered, fd)
	}
	for _, name := range names {
		visit(name)
	}
	return ordered
}
