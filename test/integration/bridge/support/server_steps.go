package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) theScannerIsServedOver(transport string) error {
	return testCtx.StartServer(transport == "WebSocket")
}

func (testCtx *TestContext) serverURL(endpoint string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", fmt.Errorf("the scanner is not served over HTTP")
	}
	return testCtx.HTTPServer.URL + endpoint, nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) request(method, endpoint, contentType string, body io.Reader) error {
	url, err := testCtx.serverURL(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, body) //nolint:noctx // client timeout bounds the request
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.request(http.MethodGet, endpoint, "", nil)
}

func (testCtx *TestContext) iPOST(endpoint string) error {
	return testCtx.request(http.MethodPost, endpoint, "", nil)
}

func (testCtx *TestContext) iPOSTWithJSON(endpoint string, body *godog.DocString) error {
	return testCtx.request(http.MethodPost, endpoint, "application/json", strings.NewReader(body.Content))
}

func (testCtx *TestContext) iUploadALabelTo(text, endpoint string) error {
	config := testutil.DefaultLabelConfig()
	config.Text = text
	label, err := testutil.GenerateLabel(config)
	if err != nil {
		return err
	}

	var encoded bytes.Buffer
	if err := pngEncode(&encoded, label); err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "label.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(encoded.Bytes()); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.request(http.MethodPost, endpoint, mw.FormDataContentType(), &body)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseFieldShouldBe compares a dotted JSON path against want.
func (testCtx *TestContext) theResponseFieldShouldBe(path, want string) error {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %v is not an object", path, doc)
		}
		if doc, ok = obj[key]; !ok {
			return fmt.Errorf("%s: missing key %q in %s", path, key, testCtx.LastHTTPResponse)
		}
	}
	if got := fmt.Sprint(doc); got != want {
		return fmt.Errorf("%s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != want {
		return fmt.Errorf("header %s: expected %q, got %q", name, want, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers the HTTP and WebSocket hosting steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scanner is served over (HTTP|WebSocket)$`, testCtx.theScannerIsServedOver)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^I POST "([^"]*)" with JSON:$`, testCtx.iPOSTWithJSON)
	sc.Step(`^I upload a QR code with text "([^"]*)" to "([^"]*)"$`, testCtx.iUploadALabelTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}

func pngEncode(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
