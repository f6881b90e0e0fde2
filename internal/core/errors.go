package core

import "fmt"

// ErrorKind enumerates the runtime's error kinds.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrMissingFunction
	ErrMissingTable
	ErrPendingTable
	ErrDimensionMismatch
	ErrUnhandledFunctionArgumentKind
	ErrIncorrectNumberOfArguments
	ErrGeneric
)

// Error is the runtime's error type, carrying a Kind alongside whatever
// payload that kind needs (the offending function-name hash, the shapes
// that failed to match, and so on). Compile-time and runtime errors both
// use this type so a Block can accumulate them uniformly in one growing
// list.
type Error struct {
	Kind ErrorKind

	Name      uint64       // ErrMissingFunction
	TableID   TableId      // ErrMissingTable, ErrPendingTable
	Shapes    []TableShape // ErrDimensionMismatch
	Expected  int          // ErrIncorrectNumberOfArguments
	Found     int          // ErrIncorrectNumberOfArguments
	Message   string       // ErrGeneric and human-readable context for any kind
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrMissingFunction:
		return fmt.Sprintf("missing function: %#x", e.Name)
	case ErrMissingTable:
		return fmt.Sprintf("missing table: %s", e.TableID)
	case ErrPendingTable:
		return fmt.Sprintf("pending table: %s", e.TableID)
	case ErrDimensionMismatch:
		return fmt.Sprintf("dimension mismatch: %v", e.Shapes)
	case ErrUnhandledFunctionArgumentKind:
		return fmt.Sprintf("unhandled function argument kind: %s", e.Message)
	case ErrIncorrectNumberOfArguments:
		return fmt.Sprintf("incorrect number of arguments: expected %d, found %d", e.Expected, e.Found)
	case ErrGeneric:
		return e.Message
	default:
		return "no error"
	}
}

// MissingFunction builds an ErrMissingFunction error.
func MissingFunction(name uint64) *Error { return &Error{Kind: ErrMissingFunction, Name: name} }

// MissingTable builds an ErrMissingTable error.
func MissingTable(id TableId) *Error { return &Error{Kind: ErrMissingTable, TableID: id} }

// PendingTableErr builds an ErrPendingTable error.
func PendingTableErr(id TableId) *Error { return &Error{Kind: ErrPendingTable, TableID: id} }

// DimensionMismatch builds an ErrDimensionMismatch error.
func DimensionMismatch(shapes ...TableShape) *Error {
	return &Error{Kind: ErrDimensionMismatch, Shapes: shapes}
}

// GenericError builds an ErrGeneric error from a formatted message.
func GenericError(format string, args ...any) *Error {
	return &Error{Kind: ErrGeneric, Message: fmt.Sprintf(format, args...)}
}
