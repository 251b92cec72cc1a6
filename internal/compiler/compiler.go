// Package compiler turns .proto sources into a descriptor set by running protoc.
package compiler

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/pbts/internal/logs"
	"github.com/wham/pbts/internal/tempdir"
	"github.com/wham/pbts/pkg/schema"
)

const descriptorSetName = "schema.pb"

// ErrProtocNotFound is returned when protoc is not on PATH.
var ErrProtocNotFound = errors.New("protoc not found")

type Compiler struct {
	mu     sync.Mutex
	logger *logs.Logger
	// protoc is the binary to run; tests replace it.
	protoc string
}

func New() *Compiler {
	return &Compiler{
		logger: logs.NewLogger(),
		protoc: "protoc",
	}
}

// Logger returns the log of the most recent Compile call.
func (c *Compiler) Logger() *logs.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// Compile runs protoc over files (relative to protoDir) and returns the
// resulting descriptor set including all imports. When files is empty every
// .proto file under protoDir is compiled. Calls are serialized.
func (c *Compiler) Compile(ctx context.Context, protoDir string, files []string) (*descriptorpb.FileDescriptorSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger = logs.NewLogger()

	set, err := c.compile(ctx, protoDir, files)
	if err != nil {
		c.logger.Error("Compilation failed", err)
		return nil, err
	}

	c.logger.Info("Compilation completed successfully")
	return set, nil
}

func (c *Compiler) compile(ctx context.Context, protoDir string, files []string) (*descriptorpb.FileDescriptorSet, error) {
	protoDir, err := filepath.Abs(protoDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve proto directory")
	}
	c.logger.Debug("protoDir: " + protoDir)

	if len(files) == 0 {
		files, err = FindProtoFiles(protoDir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.WithHint(
				errors.Newf("no .proto files found in %s", protoDir),
				"pass the files to compile explicitly or point --proto-dir at the sources")
		}
	}
	c.logger.Debug("files: " + strings.Join(files, " "))

	protocPath, err := exec.LookPath(c.protoc)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrProtocNotFound, "%s", err),
			"install protoc or use --descriptor-set")
	}

	scratchDir, err := tempdir.NewScratchDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	out := filepath.Join(scratchDir, descriptorSetName)
	args := []string{
		"--include_imports",
		"--descriptor_set_out=" + out,
		"-I" + protoDir,
	}
	args = append(args, files...)

	c.logger.Debug("Running protoc")
	c.logger.Debug(protocPath + " " + strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, protocPath, args...)
	cmd.Dir = protoDir
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			c.logger.Warn(msg)
		}
		return nil, errors.WithDetail(errors.Wrap(err, "protoc failed"), stderr.String())
	}
	c.logger.Debug("Protoc completed successfully")

	return schema.LoadDescriptorSetFile(out)
}

// FindProtoFiles returns the .proto files under dir relative to it, sorted.
func FindProtoFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".proto") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
