// Package grpc fetches schemas from running gRPC servers.
package grpc

import (
	"crypto/tls"
	"net/url"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// ShouldUseTLS determines if TLS should be used based on the target URL.
// TLS is used when:
// - The scheme is "https" or "grpcs"
// - The port is 443 (common convention for TLS)
func ShouldUseTLS(target *url.URL) bool {
	scheme := strings.ToLower(target.Scheme)
	if scheme == "https" || scheme == "grpcs" {
		return true
	}

	if target.Port() == "443" {
		return true
	}

	// dns:host:443 parses as Opaque="host:443"
	if target.Opaque != "" && strings.HasSuffix(target.Opaque, ":443") {
		return true
	}

	return false
}

// ToGRPCTarget converts a URL into a target string grpc.NewClient understands.
// dns: targets pass through, everything else becomes dns:host:port.
func ToGRPCTarget(target *url.URL) string {
	if strings.EqualFold(target.Scheme, "dns") {
		return target.String()
	}
	return "dns:" + target.Host
}

func transportCredentials(useTLS bool) credentials.TransportCredentials {
	if useTLS {
		return credentials.NewTLS(&tls.Config{})
	}
	return insecure.NewCredentials()
}
