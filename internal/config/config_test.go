package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wham/pbts/internal/logs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func hasLog(entries []*logs.Log, level logs.Level, message string) bool {
	for _, log := range entries {
		if log.Level == level && log.Message == message {
			return true
		}
	}
	return false
}

func TestLoad_ConfigFileNotExists(t *testing.T) {
	configuration, logger, err := Load("non_existent_config.json")
	require.NoError(t, err)
	require.NotNil(t, configuration)

	assert.Empty(t, configuration.Files)
	assert.Empty(t, configuration.Reflect)
	assert.True(t, hasLog(logger.Logs(), logs.LevelInfo, "Configuration file non_existent_config.json not found."))
}

func TestLoad_AllKeys(t *testing.T) {
	path := writeConfig(t, `{
		"descriptorSet": "build/schema.pb",
		"protoDir": "./proto/",
		"files": ["a.proto", " sub//b.proto ", ""],
		"reflect": " http://localhost:50051 ",
		"out": "types/schema.d.ts",
		"options": {"future": true}
	}`)

	configuration, logger, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "build/schema.pb", configuration.DescriptorSet)
	assert.Equal(t, "proto", configuration.ProtoDir)
	assert.Equal(t, []string{"a.proto", "sub/b.proto"}, configuration.Files)
	assert.Equal(t, "http://localhost:50051", configuration.Reflect)
	assert.Equal(t, "types/schema.d.ts", configuration.Out)
	assert.Equal(t, map[string]any{"future": true}, configuration.Options)
	assert.True(t, hasLog(logger.Logs(), logs.LevelWarn, "Ignoring empty entry in files"))
	assert.False(t, logger.HasErrors())
}

func TestLoad_WrongTypesAreLogged(t *testing.T) {
	path := writeConfig(t, `{"protoDir": 3, "files": "a.proto", "options": [], "color": "red"}`)

	configuration, logger, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, configuration.ProtoDir)
	assert.Empty(t, configuration.Files)
	assert.Nil(t, configuration.Options)
	assert.True(t, hasLog(logger.Logs(), logs.LevelError, `"protoDir" must be a string, ignoring it`))
	assert.True(t, hasLog(logger.Logs(), logs.LevelError, `"files" must be a list of strings, ignoring it`))
	assert.True(t, hasLog(logger.Logs(), logs.LevelError, `"options" must be an object, ignoring it`))
	assert.True(t, hasLog(logger.Logs(), logs.LevelWarn, `Unknown configuration key "color"`))
	assert.Len(t, logger.Errors(), 3)
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, _, err := Load(writeConfig(t, `{"protoDir": `))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvReflect, "grpc://example.com:9000")
	t.Setenv(EnvOut, "env.d.ts")
	path := writeConfig(t, `{"reflect": "http://localhost:1", "out": "file.d.ts"}`)

	configuration, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "grpc://example.com:9000", configuration.Reflect)
	assert.Equal(t, "env.d.ts", configuration.Out)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		configuration Configuration
		want          Source
		wantErr       bool
	}{
		{"reflect wins", Configuration{Reflect: "http://localhost:50051", DescriptorSet: "a.pb", ProtoDir: "proto"}, SourceReflect, false},
		{"descriptor set beats proto dir", Configuration{DescriptorSet: "a.pb", ProtoDir: "proto"}, SourceDescriptorSet, false},
		{"proto dir", Configuration{ProtoDir: "proto"}, SourceProtoDir, false},
		{"files imply proto dir", Configuration{Files: []string{"a.proto"}}, SourceProtoDir, false},
		{"dns target", Configuration{Reflect: "dns:localhost:50051"}, SourceReflect, false},
		{"nothing", Configuration{}, SourceNone, true},
		{"reflect without host", Configuration{Reflect: "localhost:50051"}, SourceNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := tt.configuration.Resolve()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, source)
		})
	}
}

func TestResolveDefaultsProtoDir(t *testing.T) {
	configuration := &Configuration{Files: []string{"a.proto"}}
	_, err := configuration.Resolve()
	require.NoError(t, err)
	assert.Equal(t, ".", configuration.ProtoDir)
}
