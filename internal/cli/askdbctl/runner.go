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
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type client struct {
	http    *http.Client
	baseURL string
	stdout  io.Writer
	stderr  io.Writer
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
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 90*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	httpClient := defaults.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *timeout}
	}
	c := client{http: httpClient, baseURL: strings.TrimRight(*baseURL, "/"), stdout: stdout, stderr: stderr}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	switch command {
	case "health":
		return c.simple(ctx, http.MethodGet, "/v1/health")
	case "ready":
		return c.simple(ctx, http.MethodGet, "/v1/ready")
	case "databases":
		return c.simple(ctx, http.MethodGet, "/v1/databases")
	case "providers":
		return c.simple(ctx, http.MethodGet, "/v1/providers")
	case "ask":
		return c.ask(ctx, rest)
	case "export":
		return c.export(ctx, rest)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func (c client) simple(ctx context.Context, method, path string) int {
	code, responseBody, err := doRequest(ctx, c.http, method, c.baseURL+path, nil)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 1
	}
	return c.print(code, responseBody)
}

// ask opens a throwaway session, selects the database and asks one question.
func (c client) ask(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	database := fs.String("database", "", "database to query")
	provider := fs.String("provider", "cloud", "completion provider: cloud or local")
	model := fs.String("model", "", "model name (provider default when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *database == "" || question == "" {
		_, _ = fmt.Fprintln(c.stderr, "usage: askdbctl ask -database DB [-provider P] [-model M] <question>")
		return 2
	}

	code, body, err := doRequest(ctx, c.http, http.MethodPost, c.baseURL+"/v1/sessions", nil)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		return c.print(code, body)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.SessionID == "" {
		_, _ = fmt.Fprintf(c.stderr, "unexpected session response: %s\n", strings.TrimSpace(string(body)))
		return 1
	}
	sessionPath := c.baseURL + "/v1/sessions/" + url.PathEscape(created.SessionID)
	defer func() {
		_, _, _ = doRequest(context.WithoutCancel(ctx), c.http, http.MethodDelete, sessionPath, nil)
	}()

	code, body, err = doRequest(ctx, c.http, http.MethodPut, sessionPath+"/database", map[string]string{"database": *database})
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		return c.print(code, body)
	}

	code, body, err = doRequest(ctx, c.http, http.MethodPost, sessionPath+"/ask", map[string]string{
		"question": question,
		"provider": *provider,
		"model":    *model,
	})
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 1
	}
	return c.print(code, body)
}

func (c client) export(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	database := fs.String("database", "", "database to query")
	format := fs.String("format", "csv", "export format: csv or parquet")
	upload := fs.Bool("upload", false, "upload to the object store instead of streaming")
	output := fs.String("o", "", "write the export to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	sqlText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *database == "" || sqlText == "" {
		_, _ = fmt.Fprintln(c.stderr, "usage: askdbctl export -database DB [-format csv|parquet] [-upload] [-o FILE] <sql>")
		return 2
	}

	code, body, err := doRequest(ctx, c.http, http.MethodPost, c.baseURL+"/v1/export", map[string]any{
		"database": *database,
		"sql":      sqlText,
		"format":   *format,
		"upload":   *upload,
	})
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 || code == http.StatusCreated {
		return c.print(code, body)
	}
	if *output != "" {
		if err := os.WriteFile(*output, body, 0o644); err != nil {
			_, _ = fmt.Fprintf(c.stderr, "write export: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = c.stdout.Write(body)
	return 0
}

func (c client) print(code int, responseBody []byte) int {
	if code >= 400 {
		_, _ = fmt.Fprintf(c.stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
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
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health       GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready        GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  databases    GET /v1/databases")
	_, _ = fmt.Fprintln(w, "  providers    GET /v1/providers")
	_, _ = fmt.Fprintln(w, "  ask          -database DB [-provider P] [-model M] <question>")
	_, _ = fmt.Fprintln(w, "  export       -database DB [-format csv|parquet] [-upload] [-o FILE] <sql>")
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
