package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/birbparty/stackmob/sdk"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	valueColor = color.New(color.FgWhite)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

// printJSON writes body indented, or as-is when it is not JSON
func printJSON(w io.Writer, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func printField(w io.Writer, title, value string) {
	titleColor.Fprintf(w, "%s: ", title)
	valueColor.Fprintln(w, value)
}

func printOK(w io.Writer, format string, args ...any) {
	okColor.Fprintf(w, format+"\n", args...)
}

// printError describes err on w. Platform errors show the status and
// the platform's message.
func printError(w io.Writer, err error) {
	var httpErr *sdk.HTTPResponseError
	if errors.As(err, &httpErr) {
		errorColor.Fprintf(w, "Error: %d %s\n", httpErr.StatusCode, httpErr.Message())
		return
	}

	errorColor.Fprintf(w, "Error: %v\n", err)
	switch sdk.TypeOf(err) {
	case sdk.ErrorTypeCircuitOpen:
		warnColor.Fprintln(w, "The platform host is failing; retry after the breaker timeout.")
	case sdk.ErrorTypeRedirectLoop:
		warnColor.Fprintln(w, "The platform kept redirecting; check api.host.")
	}
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch sdk.TypeOf(err) {
	case sdk.ErrorTypeClient:
		return 2
	case sdk.ErrorTypeConfiguration:
		return 3
	default:
		return 1
	}
}

func jsonBody(s string) ([]byte, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("body is not valid JSON")
	}
	return []byte(s), nil
}
