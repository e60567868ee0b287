package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/darshan-rambhia/evstore/internal/store"
	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0 // Successful execution
	ExitFailure = 1 // Query or write failed
	ExitUsage   = 2 // Bad arguments, bad input or unusable config
	ExitStore   = 3 // Database unreachable or schema could not be provisioned
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// storeError picks the exit code matching the kind of store failure.
func storeError(message string, err error) *ExitError {
	code := ExitFailure
	switch {
	case errors.Is(err, store.ErrInvalidNotification):
		code = ExitUsage
	case errors.Is(err, store.ErrConnectivity), errors.Is(err, store.ErrSchema):
		code = ExitStore
	}
	return WrapExitError(code, message, err)
}

// OutputFormatter writes command results as text, JSON or YAML.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the envelope of JSON and YAML output.
type CLIResponse struct {
	Status string      `json:"status" yaml:"status"`
	Data   interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	resp := CLIResponse{Status: "ok", Data: data}
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	}

	f.writeText(data)
	return nil
}

func (f *OutputFormatter) writeText(data interface{}) {
	w := f.Writer
	switch v := data.(type) {
	case *model.EventDataStreamSet:
		if v.Len() == 0 {
			fmt.Fprintf(w, "no notifications for %s\n", v.DeviceURI)
		}
		for _, s := range v.Streams {
			writeStream(w, s)
		}
	case *model.EventDataStream:
		writeStream(w, v)
	case []model.Device:
		for _, d := range v {
			fmt.Fprintf(w, "%s\t%s\n", d.URI, d.FirstSeen.Format(time.RFC3339))
		}
	default:
		fmt.Fprintln(w, data)
	}
}

func writeStream(w io.Writer, s *model.EventDataStream) {
	header := s.Name
	if s.Params != "" {
		header += " [" + s.Params + "]"
	}
	fmt.Fprintf(w, "%s (%s, %d points)\n", header, s.DeviceURI, s.Len())
	for _, p := range s.Points {
		fmt.Fprintf(w, "  %s  %s", p.Timestamp.Format(time.RFC3339Nano), p.Value)
		if p.Unit != "" {
			fmt.Fprintf(w, " %s", p.Unit)
		}
		fmt.Fprintln(w)
	}
}
