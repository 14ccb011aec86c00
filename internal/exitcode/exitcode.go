package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// ValidationError indicates the backend rejected the request contents
	ValidationError = 3

	// StoreError indicates the credential store could not be read or written
	StoreError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates the backend could not be reached
	NetworkError = 6

	// Interrupted indicates the user cancelled with Ctrl+C
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode maps an error to an exit code. Coded errors are
// classified by category; anything else falls back to message heuristics
// for the usage errors cobra produces.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code := errors.CodeOf(err); code != "" {
		switch code.Category() {
		case "AUTH":
			return AuthError
		case "NET":
			return NetworkError
		case "CONFIG":
			return UsageError
		case "STORE":
			return StoreError
		case "API":
			if code == errors.ErrCodeValidationFailed {
				return ValidationError
			}
			return GeneralError
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "invalid argument") || strings.Contains(errMsg, "accepts") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments, or configuration)"
	case ValidationError:
		return "Request rejected by the backend"
	case StoreError:
		return "Credential store error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted by user"
	default:
		return "Unknown error"
	}
}
