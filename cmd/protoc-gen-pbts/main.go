// Command protoc-gen-pbts is a protoc plugin that writes a TypeScript
// declaration module for all files in the request.
//
//	protoc --pbts_out=types --pbts_opt=out=api.d.ts -Iproto proto/*.proto
package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/wham/pbts/pkg/schema"
	"github.com/wham/pbts/pkg/typescript"
)

const defaultOutput = "schema.d.ts"

func main() {
	// stdout carries the response
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		os.Stderr.WriteString("failed to read input: " + err.Error() + "\n")
		os.Exit(1)
	}

	req := &pluginpb.CodeGeneratorRequest{}
	if err := proto.Unmarshal(input, req); err != nil {
		os.Stderr.WriteString("failed to unmarshal request: " + err.Error() + "\n")
		os.Exit(1)
	}

	resp := generate(req)

	output, err := proto.Marshal(resp)
	if err != nil {
		os.Stderr.WriteString("failed to marshal response: " + err.Error() + "\n")
		os.Exit(1)
	}

	os.Stdout.Write(output)
}

type params struct {
	out     string
	options typescript.Options
}

// parseParameters reads comma separated key=value pairs. out names the output
// file; every other pair is passed to the generator as an option.
func parseParameters(paramStr *string) params {
	p := params{out: defaultOutput, options: typescript.Options{}}
	if paramStr == nil {
		return p
	}

	for _, param := range strings.Split(*paramStr, ",") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		key, value, hasValue := strings.Cut(param, "=")
		if key == "out" {
			if value != "" {
				p.out = value
			}
			continue
		}
		if hasValue {
			p.options[key] = value
		} else {
			p.options[key] = true
		}
	}
	return p
}

func generate(req *pluginpb.CodeGeneratorRequest) *pluginpb.CodeGeneratorResponse {
	resp := &pluginpb.CodeGeneratorResponse{}
	resp.SupportedFeatures = proto.Uint64(uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL))

	params := parseParameters(req.Parameter)

	tree := schema.FromFiles(req.GetProtoFile())
	content, err := typescript.Generate(tree, params.options)
	if err != nil {
		resp.Error = proto.String(err.Error())
		return resp
	}

	resp.File = append(resp.File, &pluginpb.CodeGeneratorResponse_File{
		Name:    proto.String(params.out),
		Content: proto.String(content),
	})
	return resp
}
