package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/pbts/internal/config"
	"github.com/wham/pbts/pkg/typescript"
)

func writeDescriptorSet(t *testing.T, dir, pkg string) string {
	t.Helper()
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			{
				Name:    proto.String("person.proto"),
				Package: proto.String(pkg),
				MessageType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("Person"),
						Field: []*descriptorpb.FieldDescriptorProto{
							{
								Name:   proto.String("name"),
								Number: proto.Int32(1),
								Label:  descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum(),
								Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
							},
						},
					},
				},
			},
		},
	}
	data, err := proto.Marshal(set)
	require.NoError(t, err)

	path := filepath.Join(dir, "schema.pb")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return stdout.String(), err
}

func TestTargets(t *testing.T) {
	out, err := execute(t, "targets")
	require.NoError(t, err)
	assert.Equal(t, "typescript: "+typescript.Description+"\n", out)
}

func TestGenerateToStdout(t *testing.T) {
	dir := t.TempDir()
	set := writeDescriptorSet(t, dir, "foo.bar")

	out, err := execute(t, "generate", "--config", filepath.Join(dir, "none.json"), "--descriptor-set", set)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export module foo.bar {\n"))
	assert.Contains(t, out, "    name: string;\n")
}

func TestGenerateFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	set := writeDescriptorSet(t, dir, "cfg")
	outPath := filepath.Join(dir, "types", "schema.d.ts")
	configPath := filepath.Join(dir, config.DefaultPath)
	require.NoError(t, os.WriteFile(configPath,
		[]byte(`{"descriptorSet": "`+filepath.ToSlash(set)+`", "out": "`+filepath.ToSlash(outPath)+`"}`), 0644))

	out, err := execute(t, "generate", "--config", configPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "export module cfg {\n"))
}

func TestGenerateFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	set := writeDescriptorSet(t, dir, "flag")
	configPath := filepath.Join(dir, config.DefaultPath)
	require.NoError(t, os.WriteFile(configPath, []byte(`{"descriptorSet": "missing.pb", "out": "ignored.d.ts"}`), 0644))

	out, err := execute(t, "generate", "--config", configPath, "--descriptor-set", set, "--out", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export module flag {\n"))
}

func TestGenerateWithoutSource(t *testing.T) {
	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema source configured")
}

func TestGenerateRejectsInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	set := writeDescriptorSet(t, dir, "bad")
	configPath := filepath.Join(dir, config.DefaultPath)
	require.NoError(t, os.WriteFile(configPath, []byte(`{"descriptorSet": "`+filepath.ToSlash(set)+`", "out": 5}`), 0644))

	out, err := execute(t, "generate", "--config", configPath)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), `"out" must be a string`)
	assert.Contains(t, errors.FlattenDetails(err), "error: \"out\" must be a string, ignoring it")
}

func TestGenerateReportsCompilerLog(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "generate", "--config", filepath.Join(dir, "none.json"), "--proto-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .proto files found")
	assert.Contains(t, errors.FlattenDetails(err), "error: Compilation failed")
}

func TestWatchedPathsRejectsReflect(t *testing.T) {
	_, err := watchedPaths(&config.Configuration{Reflect: "http://localhost:1"}, config.SourceReflect)
	assert.Error(t, err)
}

func TestRunWatchRegenerates(t *testing.T) {
	dir := t.TempDir()
	set := writeDescriptorSet(t, dir, "first")
	outPath := filepath.Join(dir, "schema.d.ts")
	cfg := &config.Configuration{DescriptorSet: set, Out: outPath}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cfg, &bytes.Buffer{}) }()

	readOut := func() string {
		content, _ := os.ReadFile(outPath)
		return string(content)
	}
	require.Eventually(t, func() bool {
		return strings.HasPrefix(readOut(), "export module first {")
	}, 5*time.Second, 50*time.Millisecond)

	writeDescriptorSet(t, dir, "second")
	// Keep moving the mod time so the change is seen even if the watcher
	// started after the rewrite.
	bumps := 0
	assert.Eventually(t, func() bool {
		bumps++
		later := time.Now().Add(time.Duration(bumps) * time.Hour)
		os.Chtimes(set, later, later)
		return strings.HasPrefix(readOut(), "export module second {")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
