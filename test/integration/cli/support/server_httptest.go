package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/wallplan/internal/config"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/server"
)

const requestTimeout = 30 * time.Second

// HTTPTestServerWrapper wraps an httptest.Server around the real router.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the service with the default configuration.
func (testCtx *TestContext) createTestHTTPServer(mutate func(*server.Config)) error {
	def := config.DefaultConfig()
	cfg := server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    int64(def.Server.MaxUploadMB),
		TimeoutSec:     def.Server.TimeoutSec,
		PipelineConfig: def.ToPipelineConfig(),
		OverlayEnabled: true,
		Render:         def.RenderOptions(),
		Catalog:        estimate.DefaultCatalog(),
		Estimate:       def.Blocks.Estimate,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Router()),
		TestServer: srv,
	}
	return nil
}

// stopTestHTTPServer stops the httptest server.
func (testCtx *TestContext) stopTestHTTPServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	testCtx.HTTPTestServer.Server.Close()
	err := testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.createTestHTTPServer(nil)
}

func (testCtx *TestContext) theServerIsRunningWithARateLimitOf(perMinute int) error {
	return testCtx.createTestHTTPServer(func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute, RequestsPerHour: 1000}
	})
}

func (testCtx *TestContext) theServerIsRunningWithCORSOrigin(origin string) error {
	return testCtx.createTestHTTPServer(func(c *server.Config) { c.CORSOrigin = origin })
}

// do sends req and records the response.
func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) newRequest(method, path string, body io.Reader) (*http.Request, context.CancelFunc, error) {
	if testCtx.HTTPTestServer == nil {
		return nil, nil, fmt.Errorf("server is not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	req, err := http.NewRequestWithContext(ctx, method, testCtx.HTTPTestServer.Server.URL+path, body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return req, cancel, nil
}

func (testCtx *TestContext) iGET(path string) error {
	req, cancel, err := testCtx.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer cancel()
	return testCtx.do(req)
}

func (testCtx *TestContext) iGETWithOrigin(path, origin string) error {
	req, cancel, err := testCtx.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer cancel()
	req.Header.Set("Origin", origin)
	return testCtx.do(req)
}

// iUploadTo posts a temp file as the multipart "file" field; the query
// string of path is sent as form fields.
func (testCtx *TestContext) iUploadTo(name, path string) error {
	data, err := os.ReadFile(testCtx.TempPath(name))
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	endpoint, query, _ := strings.Cut(path, "?")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for _, kv := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			_ = mw.WriteField(k, v)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, cancel, err := testCtx.newRequest(http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	defer cancel()
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iPOSTJSON(path string, body *godog.DocString) error {
	req, cancel, err := testCtx.newRequest(http.MethodPost, path, strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	defer cancel()
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (any, error) {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return data, nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	_, err := testCtx.responseJSON()
	return err
}

func (testCtx *TestContext) theResponseFieldShouldBe(field string, want float64) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return expectNumber(data, field, want, 1e-6)
}

func (testCtx *TestContext) theResponseFieldShouldBeAbout(field string, want float64) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return expectNumber(data, field, want, approxTolerance)
}

func (testCtx *TestContext) theResponseFieldShouldEqual(field, want string) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return expectString(data, field, want)
}

func (testCtx *TestContext) theResponseArrayShouldHaveItems(field string, n int) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return expectLength(data, field, n)
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != want {
		return fmt.Errorf("header %s is %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

// RegisterServerSteps registers the HTTP service steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the wallplan server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the wallplan server is running with a rate limit of (\d+) requests per minute$`,
		testCtx.theServerIsRunningWithARateLimitOf)
	sc.Step(`^the wallplan server is running with CORS origin "([^"]*)"$`, testCtx.theServerIsRunningWithCORSOrigin)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I GET "([^"]*)" from origin "([^"]*)"$`, testCtx.iGETWithOrigin)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I POST JSON to "([^"]*)":$`, testCtx.iPOSTJSON)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should be (-?[\d.]+)$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be about (-?[\d.]+)$`, testCtx.theResponseFieldShouldBeAbout)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, testCtx.theResponseFieldShouldEqual)
	sc.Step(`^the response array "([^"]*)" should have (\d+) items?$`, testCtx.theResponseArrayShouldHaveItems)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
}
