package value

import "fmt"

// ErrorKind tags the taxonomy of §7: each is a distinct failure condition a
// task (or the load phase) can hit. We standardize on this enum rather than
// on Go's usual "define a sentinel error per condition" idiom because tests
// and the reporter both need to branch on *which* kind of failure occurred,
// not just that one did.
type ErrorKind int

const (
	PathMissing ErrorKind = iota
	PathEscape
	DuplicateOutput
	ExpansionCycle
	UnknownVariant
	MissingCommand
	InvalidCommand
	InvalidDepFormat
	CommandFailed
	JobOverflow
	// CancelledError is the error kind of a propagated upstream failure. The
	// plain name Cancelled is taken by the Kind of the Cancelled sentinel
	// value in this package.
	CancelledError
)

func (k ErrorKind) String() string {
	switch k {
	case PathMissing:
		return "PathMissing"
	case PathEscape:
		return "PathEscape"
	case DuplicateOutput:
		return "DuplicateOutput"
	case ExpansionCycle:
		return "ExpansionCycle"
	case UnknownVariant:
		return "UnknownVariant"
	case MissingCommand:
		return "MissingCommand"
	case InvalidCommand:
		return "InvalidCommand"
	case InvalidDepFormat:
		return "InvalidDepFormat"
	case CommandFailed:
		return "CommandFailed"
	case JobOverflow:
		return "JobOverflow"
	case CancelledError:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// BuildError is the concrete error type behind every Value of Kind Error. It
// implements the error interface so it can flow through normal Go error
// returns as well as through the Value union when it needs to propagate
// through expansion (§3.1: "Error(ErrorKind, message) - propagates failure
// through expansion").
type BuildError struct {
	Kind ErrorKind
	Msg  string
	Code int // populated for CommandFailed
}

func (e *BuildError) Error() string {
	if e.Kind == CommandFailed {
		return fmt.Sprintf("%s: %s (exit code %d)", e.Kind, e.Msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func NewError(kind ErrorKind, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NewCommandFailed(code int, format string, args ...any) *BuildError {
	return &BuildError{Kind: CommandFailed, Msg: fmt.Sprintf(format, args...), Code: code}
}
