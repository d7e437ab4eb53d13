package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/plotmeter/cmd/plotmeter/cmd"
	"github.com/cucumber/godog"
)

// fastConfig is written as plotmeter.yaml so commands pick it up from the
// working directory.
const fastConfig = `preprocess:
  template_window: 3
  search_window: 7
`

func (testCtx *TestContext) aFastConfiguration() error {
	return testCtx.writeFile("plotmeter.yaml", []byte(fastConfig))
}

func (testCtx *TestContext) aFileContaining(name string, body *godog.DocString) error {
	return testCtx.writeFile(name, []byte(body.Content))
}

// iRunCommand runs the plotmeter command tree in-process, inside the
// scenario directory.
func (testCtx *TestContext) iRunCommand(command string) error {
	return testCtx.run(command, "")
}

func (testCtx *TestContext) iRunCommandWithInput(command string, input *godog.DocString) error {
	return testCtx.run(command, input.Content)
}

func (testCtx *TestContext) run(command, stdin string) error {
	args := strings.Fields(command)
	if len(args) == 0 || args[0] != "plotmeter" {
		return fmt.Errorf("expected a plotmeter command, got %q", command)
	}

	prev, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(testCtx.TempDir); err != nil {
		return err
	}
	defer func() { _ = os.Chdir(prev) }()

	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args[1:])

	testCtx.LastCommand = command
	testCtx.LastError = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded unexpectedly\noutput: %s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return errors.New("no error to inspect")
	}
	if !strings.Contains(strings.ToLower(testCtx.LastError.Error()), strings.ToLower(text)) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, text)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theLogShouldContain(text string) error {
	if !strings.Contains(testCtx.LastStderr, text) {
		return fmt.Errorf("log does not contain %q:\n%s", text, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, want string) error {
	return jsonFieldIs([]byte(testCtx.LastOutput), field, want)
}

func (testCtx *TestContext) theJSONFieldShouldContain(field, want string) error {
	got, err := jsonField([]byte(testCtx.LastOutput), field)
	if err != nil {
		return err
	}
	if !strings.Contains(got, want) {
		return fmt.Errorf("%s = %q, want it to contain %q", field, got, want)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldNotBe(field, unwanted string) error {
	got, err := jsonField([]byte(testCtx.LastOutput), field)
	if err != nil {
		return err
	}
	if got == unwanted {
		return fmt.Errorf("%s is %q", field, got)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	info, err := os.Stat(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("file %s: %w", name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", name)
	}
	return nil
}

// jsonField returns a top-level field of a JSON object, or a nested one
// written as "a.b", formatted as text.
func jsonField(data []byte, field string) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("invalid JSON: %w\n%s", err, data)
	}
	for _, key := range strings.Split(field, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%s: not an object", field)
		}
		if v, ok = obj[key]; !ok {
			return "", fmt.Errorf("field %s missing in %s", field, data)
		}
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func jsonFieldIs(data []byte, field, want string) error {
	got, err := jsonField(data, field)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", field, got, want)
	}
	return nil
}

// RegisterCommonSteps registers the command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a fast configuration$`, testCtx.aFastConfiguration)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run "([^"]*)" with input:$`, testCtx.iRunCommandWithInput)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the log should contain "([^"]*)"$`, testCtx.theLogShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should contain "([^"]*)"$`, testCtx.theJSONFieldShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should not be "([^"]*)"$`, testCtx.theJSONFieldShouldNotBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
