// Package config loads pbts.json.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wham/pbts/internal/logs"
)

const DefaultPath = "pbts.json"

const (
	EnvReflect = "PBTS_REFLECT"
	EnvOut     = "PBTS_OUT"
)

// Source is where the schema comes from.
type Source int

const (
	SourceNone Source = iota
	SourceReflect
	SourceDescriptorSet
	SourceProtoDir
)

func (s Source) String() string {
	switch s {
	case SourceReflect:
		return "reflect"
	case SourceDescriptorSet:
		return "descriptorSet"
	case SourceProtoDir:
		return "protoDir"
	default:
		return "none"
	}
}

type Configuration struct {
	DescriptorSet string
	ProtoDir      string
	Files         []string
	Reflect       string
	// Out is the output file; empty means stdout.
	Out     string
	Options map[string]any
}

// Load reads the configuration file at path, applies environment overrides
// and normalizes the result. A missing file yields an empty configuration.
// Problems that do not prevent loading, such as a value of the wrong type, are
// recorded in the returned logger; callers decide whether they are fatal.
func Load(path string) (*Configuration, *logs.Logger, error) {
	logger := logs.NewLogger()
	logger.Info(fmt.Sprintf("configurationPath %s", path))

	configuration, err := loadConfigurationFile(path, logger)
	if err != nil {
		return nil, logger, err
	}

	applyEnvironmentVariables(configuration, logger)
	normalize(configuration, logger)

	return configuration, logger, nil
}

func loadConfigurationFile(path string, logger *logs.Logger) (*Configuration, error) {
	configuration := &Configuration{}

	logger.Debug(fmt.Sprintf("Trying to load configuration from file %s", path))
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info(fmt.Sprintf("Configuration file %s not found.", path))
			return configuration, nil
		}
		return nil, errors.Wrapf(err, "failed to read configuration file %s", path)
	}

	doc := &structpb.Struct{}
	if err := protojson.Unmarshal(content, doc); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to parse configuration file %s", path),
			"the configuration file must be a JSON object")
	}

	fields := doc.GetFields()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := fields[key]
		switch key {
		case "descriptorSet":
			configuration.DescriptorSet = stringField(key, value, logger)
		case "protoDir":
			configuration.ProtoDir = stringField(key, value, logger)
		case "reflect":
			configuration.Reflect = stringField(key, value, logger)
		case "out":
			configuration.Out = stringField(key, value, logger)
		case "files":
			configuration.Files = stringListField(key, value, logger)
		case "options":
			if s := value.GetStructValue(); s != nil {
				configuration.Options = s.AsMap()
			} else {
				logger.Error(fmt.Sprintf("%q must be an object, ignoring it", key), nil)
			}
		default:
			logger.Warn(fmt.Sprintf("Unknown configuration key %q", key))
		}
	}

	return configuration, nil
}

func stringField(key string, value *structpb.Value, logger *logs.Logger) string {
	if s, ok := value.GetKind().(*structpb.Value_StringValue); ok {
		return s.StringValue
	}
	logger.Error(fmt.Sprintf("%q must be a string, ignoring it", key), nil)
	return ""
}

func stringListField(key string, value *structpb.Value, logger *logs.Logger) []string {
	list := value.GetListValue()
	if list == nil {
		logger.Error(fmt.Sprintf("%q must be a list of strings, ignoring it", key), nil)
		return nil
	}
	var out []string
	for i, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			logger.Error(fmt.Sprintf("%q[%d] must be a string, ignoring it", key, i), nil)
			continue
		}
		out = append(out, s.StringValue)
	}
	return out
}

func applyEnvironmentVariables(configuration *Configuration, logger *logs.Logger) {
	if v, ok := os.LookupEnv(EnvReflect); ok {
		logger.Debug(fmt.Sprintf("reflect overridden by %s", EnvReflect))
		configuration.Reflect = v
	}
	if v, ok := os.LookupEnv(EnvOut); ok {
		logger.Debug(fmt.Sprintf("out overridden by %s", EnvOut))
		configuration.Out = v
	}
}

func normalize(configuration *Configuration, logger *logs.Logger) {
	configuration.Reflect = strings.TrimSpace(configuration.Reflect)
	configuration.DescriptorSet = cleanPath(configuration.DescriptorSet)
	configuration.ProtoDir = cleanPath(configuration.ProtoDir)
	configuration.Out = cleanPath(configuration.Out)

	files := make([]string, 0, len(configuration.Files))
	for _, f := range configuration.Files {
		f = strings.TrimSpace(f)
		if f == "" {
			logger.Warn("Ignoring empty entry in files")
			continue
		}
		files = append(files, filepath.ToSlash(filepath.Clean(f)))
	}
	configuration.Files = files
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Resolve picks the effective source: reflect beats descriptorSet beats
// protoDir. Files without a protoDir are compiled relative to the working
// directory.
func (c *Configuration) Resolve() (Source, error) {
	if c.ProtoDir == "" && len(c.Files) > 0 {
		c.ProtoDir = "."
	}

	var source Source
	switch {
	case c.Reflect != "":
		source = SourceReflect
	case c.DescriptorSet != "":
		source = SourceDescriptorSet
	case c.ProtoDir != "":
		source = SourceProtoDir
	default:
		return SourceNone, errors.WithHint(
			errors.New("no schema source configured"),
			"set one of --reflect, --descriptor-set or --proto-dir")
	}

	if source == SourceReflect {
		target, err := url.Parse(c.Reflect)
		if err != nil {
			return SourceNone, errors.Wrapf(err, "invalid reflect target %q", c.Reflect)
		}
		if target.Host == "" && !(strings.EqualFold(target.Scheme, "dns") && target.Opaque != "") {
			return SourceNone, errors.WithHint(
				errors.Newf("reflect target %q has no host", c.Reflect),
				"use a URL such as http://localhost:50051")
		}
	}

	if source == SourceReflect && c.DescriptorSet != "" {
		slog.Warn("Ignoring descriptorSet", "source", source, "descriptorSet", c.DescriptorSet)
	}
	if source != SourceProtoDir && c.ProtoDir != "" {
		slog.Warn("Ignoring protoDir", "source", source, "protoDir", c.ProtoDir)
	}

	return source, nil
}
