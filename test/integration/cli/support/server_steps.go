package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/config"
	"github.com/MeKo-Tech/plotmeter/internal/server"
	"github.com/cucumber/godog"
)

// theMeasurementServerIsRunning starts an httptest server with the default
// configuration and a small denoiser.
func (testCtx *TestContext) theMeasurementServerIsRunning() error {
	cfg := config.DefaultConfig()
	cfg.Preprocess.TemplateWindow = 3
	cfg.Preprocess.SearchWindow = 7
	mc, err := cfg.ToMeasureConfig()
	if err != nil {
		return err
	}
	s, err := server.NewServer(server.Config{
		Engine:     mc,
		TimeoutSec: cfg.Server.TimeoutSec,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return err
	}
	testCtx.Server = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.Server == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.Server.URL + path, nil
}

func (testCtx *TestContext) iGET(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	resp, err := http.Get(url) //nolint:gosec,noctx // test server URL
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iPOSTTheFile(name, path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data)) //nolint:gosec,noctx // test server URL
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

// iUpload sends name as the multipart "image" field, with the table rows as
// extra form fields.
func (testCtx *TestContext) iUpload(name, path string, fields *godog.Table) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if fields != nil {
		for _, row := range fields.Rows {
			if len(row.Cells) != 2 {
				return errors.New("form field rows need a name and a value")
			}
			if err := mw.WriteField(row.Cells[0].Value, row.Cells[1].Value); err != nil {
				return err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(url, mw.FormDataContentType(), &body) //nolint:gosec,noctx // test server URL
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iUploadWithoutFields(name, path string) error {
	return testCtx.iUpload(name, path, nil)
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, want string) error {
	return jsonFieldIs(testCtx.LastHTTPResponse, field, want)
}

func (testCtx *TestContext) theResponseFieldShouldContain(field, want string) error {
	got, err := jsonField(testCtx.LastHTTPResponse, field)
	if err != nil {
		return err
	}
	if !strings.Contains(got, want) {
		return fmt.Errorf("%s = %q, want it to contain %q", field, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != want {
		return fmt.Errorf("header %s = %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNG() error {
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte("\x89PNG\r\n\x1a\n")) {
		return fmt.Errorf("response is not a PNG (%d bytes)", len(testCtx.LastHTTPResponse))
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers the HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the measurement server is running$`, testCtx.theMeasurementServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the file "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheFile)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with fields:$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadWithoutFields)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, testCtx.theResponseFieldShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNG)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
