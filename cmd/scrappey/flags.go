package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/scrappey/scrappey-go"
	"github.com/spf13/cobra"
)

// requestFlags are the per-request options shared by the request commands.
type requestFlags struct {
	session          string
	options          []string
	headers          []string
	cloudflareBypass bool
	premiumProxy     bool
	proxyCountry     string
	requestType      string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "Session token to run the request in")
	cmd.Flags().StringArrayVarP(&f.options, "option", "o", nil, "Extra option key=value; JSON values are decoded (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Custom header \"Name: value\" (can be used multiple times)")
	cmd.Flags().BoolVar(&f.cloudflareBypass, "cloudflare-bypass", false, "Enable Cloudflare bypass")
	cmd.Flags().BoolVar(&f.premiumProxy, "premium-proxy", false, "Use the premium proxy pool")
	cmd.Flags().StringVar(&f.proxyCountry, "proxy-country", "", "Request a proxy from this country")
	cmd.Flags().StringVar(&f.requestType, "request-type", "", "Request mode: browser or request")
}

// payload builds the options map. Explicit flags override -o values.
func (f *requestFlags) payload(defaults map[string]any) (scrappey.Payload, error) {
	p := scrappey.Merge(defaults)

	for _, raw := range f.options {
		key, value, err := parseOption(raw)
		if err != nil {
			return nil, err
		}
		p[key] = value
	}

	if len(f.headers) > 0 {
		headers := make(map[string]string, len(f.headers))
		for _, raw := range f.headers {
			name, value, err := parseHeader(raw)
			if err != nil {
				return nil, err
			}
			headers[name] = value
		}
		p["customHeaders"] = headers
	}

	if f.session != "" {
		p["session"] = f.session
	}
	if f.cloudflareBypass {
		p["cloudflareBypass"] = true
	}
	if f.premiumProxy {
		p["premiumProxy"] = true
	}
	if f.proxyCountry != "" {
		p["proxyCountry"] = f.proxyCountry
	}
	if f.requestType != "" {
		p["requestType"] = f.requestType
	}
	return p, nil
}

// parseOption splits key=value. The value is decoded as JSON when possible,
// so -o retries=3 sends a number and -o filter='["response"]' an array.
func parseOption(raw string) (string, any, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid option %q, expected key=value", raw)
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		return key, decoded, nil
	}
	return key, value, nil
}

func parseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q, expected \"Name: value\"", raw)
	}
	return name, strings.TrimSpace(value), nil
}

// parseData reads request data. "@path" reads a file; JSON objects and
// arrays are sent structured, anything else as a raw string.
func parseData(data string) (any, error) {
	if strings.HasPrefix(data, "@") {
		content, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		data = string(content)
	}

	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded, nil
		}
	}
	return data, nil
}
