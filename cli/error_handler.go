package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/packreload/errors"
)

// ErrorHandler prints user-facing hints for known error codes.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an ErrorHandler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints err with a hint and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeAlreadyRunning:
		fmt.Fprintf(h.Out, "Error: %s\n", errors.Message(err))
		fmt.Fprintln(h.Out, "Stop it first with 'packreload stop'.")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigUnreadable:
		fmt.Fprintf(h.Out, "Error: %s\n", errors.Message(err))
		if re, ok := err.(*errors.ReloadError); ok && re.Details["path"] != nil {
			fmt.Fprintf(h.Out, "Check %v.\n", re.Details["path"])
		}

	case errors.ErrCodeInterpreterUnavailable:
		fmt.Fprintf(h.Out, "Error: %s\n", errors.Message(err))
		fmt.Fprintln(h.Out, "Set python=<interpreter> in the toolchain config file.")

	case errors.ErrCodeCompilerMissing:
		fmt.Fprintf(h.Out, "Error: %s\n", errors.Message(err))
		fmt.Fprintln(h.Out, "Enable auto-update or place packscript.py in the dev or config folder.")

	case errors.ErrCodeCommandNotFound:
		fmt.Fprintf(h.Out, "Error: %s\n", errors.Message(err))
		fmt.Fprintln(h.Out, "Make sure the command is installed and on PATH.")

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose {
		if re, ok := err.(*errors.ReloadError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", re.ToJSON())
		}
	}
	return err
}
