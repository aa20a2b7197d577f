// Package askdbctl implements the askdb command-line client.
package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   any
	// output receives a non-JSON response body instead of stdout.
	output string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("askdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askdb API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	req, err := buildRequest(command, fs.Args()[1:], defaults, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, contentType, responseBody, err := doRequest(ctx, client, req.method, endpoint, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.output != "" && !strings.HasPrefix(contentType, "application/json") {
		if req.output == "-" {
			_, _ = stdout.Write(responseBody)
			return 0
		}
		if err := os.WriteFile(req.output, responseBody, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "write %s: %v\n", req.output, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(responseBody), req.output)
		return 0
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, defaults Options, stderr io.Writer) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "connect":
		fs := flag.NewFlagSet("connect", flag.ContinueOnError)
		fs.SetOutput(stderr)
		host := fs.String("host", "", "MySQL host (server default when empty)")
		port := fs.Int("port", 0, "MySQL port (server default when zero)")
		user := fs.String("user", "", "MySQL user")
		password := fs.String("password", defaults.Password, "MySQL password")
		database := fs.String("database", "", "database name")
		if err := fs.Parse(args); err != nil {
			return request{}, err
		}
		if strings.TrimSpace(*user) == "" || strings.TrimSpace(*database) == "" {
			return request{}, fmt.Errorf("connect requires -user and -database")
		}
		return request{method: http.MethodPost, path: "/v1/sessions", body: map[string]any{
			"host":     *host,
			"port":     *port,
			"user":     *user,
			"password": *password,
			"database": *database,
		}}, nil
	case "schema":
		sessionID, _, err := sessionArgs(command, args, false)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodGet, path: sessionPath(sessionID, "/schema")}, nil
	case "ask", "translate":
		sessionID, question, err := sessionArgs(command, args, true)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: sessionPath(sessionID, "/"+command), body: map[string]any{"question": question}}, nil
	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(stderr)
		format := fs.String("format", "csv", "csv, xlsx or parquet")
		output := fs.String("o", "", "output file (default query_results.<format>, - for stdout)")
		if err := fs.Parse(args); err != nil {
			return request{}, err
		}
		sessionID, sqlText, err := sessionArgs(command, fs.Args(), true)
		if err != nil {
			return request{}, err
		}
		target := *output
		if target == "" {
			target = "query_results." + strings.ToLower(strings.TrimSpace(*format))
		}
		return request{
			method: http.MethodPost,
			path:   sessionPath(sessionID, "/export"),
			body:   map[string]any{"sql": sqlText, "format": *format},
			output: target,
		}, nil
	case "disconnect":
		sessionID, _, err := sessionArgs(command, args, false)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodDelete, path: sessionPath(sessionID, "")}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

// sessionArgs reads the session id and, when wantText is set, joins the
// remaining arguments into one string.
func sessionArgs(command string, args []string, wantText bool) (string, string, error) {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return "", "", fmt.Errorf("%s requires a session id", command)
	}
	if !wantText {
		return args[0], "", nil
	}
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return "", "", fmt.Errorf("%s requires text after the session id", command)
	}
	return args[0], text, nil
}

func sessionPath(sessionID, suffix string) string {
	return "/v1/sessions/" + url.PathEscape(sessionID) + suffix
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, payload any) (int, string, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, "", nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                                   GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                                    GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  connect -user U -database D [-host H]    POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  schema <session>                         GET /v1/sessions/{id}/schema")
	_, _ = fmt.Fprintln(w, "  ask <session> <question>                 POST /v1/sessions/{id}/ask")
	_, _ = fmt.Fprintln(w, "  translate <session> <question>           POST /v1/sessions/{id}/translate")
	_, _ = fmt.Fprintln(w, "  export [-format F] [-o FILE] <session> <sql>")
	_, _ = fmt.Fprintln(w, "                                           POST /v1/sessions/{id}/export")
	_, _ = fmt.Fprintln(w, "  disconnect <session>                     DELETE /v1/sessions/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
