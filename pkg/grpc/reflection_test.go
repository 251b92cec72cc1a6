package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/pbts/pkg/schema"
	"github.com/wham/pbts/pkg/typescript"
)

func startServer(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, health.NewServer())
	reflection.Register(server)

	go server.Serve(lis)
	t.Cleanup(server.Stop)

	return "http://" + lis.Addr().String()
}

func TestDiscover(t *testing.T) {
	client, err := NewReflectionClientFromString(startServer(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := client.Discover(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"grpc.health.v1.Health"}, result.Services)
	require.NotEmpty(t, result.Files.GetFile())

	var packages []string
	for _, fd := range result.Files.GetFile() {
		packages = append(packages, fd.GetPackage())
	}
	assert.Contains(t, packages, "grpc.health.v1")
	assert.NotContains(t, packages, "grpc.reflection.v1")

	tree := schema.FromFileDescriptorSet(result.Files)
	out, err := typescript.Generate(tree, nil)
	require.NoError(t, err)
	// v1 carries file options, so collapsing stops above it.
	assert.Contains(t, out, "export module grpc.health {\n")
	assert.Contains(t, out, "  export module v1 {\n")
	assert.Contains(t, out, "    export class HealthCheckRequest {\n")
	assert.Contains(t, out, "      enum ServingStatus {\n")
}

func TestDiscoverUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	client, err := NewReflectionClientFromString("http://" + addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = client.Discover(ctx)
	assert.Error(t, err)
}

func TestOrderFilesPlacesDependenciesFirst(t *testing.T) {
	file := func(name string, deps ...string) *descriptorpb.FileDescriptorProto {
		return &descriptorpb.FileDescriptorProto{Name: proto.String(name), Dependency: deps}
	}
	files := map[string]*descriptorpb.FileDescriptorProto{
		"a.proto":      file("a.proto", "z/base.proto"),
		"b.proto":      file("b.proto", "a.proto", "missing.proto"),
		"z/base.proto": file("z/base.proto"),
		"c.proto":      file("c.proto"),
	}

	var names []string
	for _, fd := range orderFiles(files) {
		names = append(names, fd.GetName())
	}
	assert.Equal(t, []string{"z/base.proto", "a.proto", "b.proto", "c.proto"}, names)
}
