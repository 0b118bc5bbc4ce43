// ABOUTME: Error taxonomy of the element tree
// ABOUTME: Typed Error carrying a Kind, with one sentinel per kind for errors.Is

package arxml

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation indicates a structural change the schema does not permit
	ErrSchemaViolation = errors.New("arxml: schema violation")

	// ErrIncorrectContentType indicates character data on an element that cannot hold it, or an invalid value
	ErrIncorrectContentType = errors.New("arxml: incorrect content type")

	// ErrDuplicateName indicates a path that is already taken
	ErrDuplicateName = errors.New("arxml: duplicate name")

	// ErrInvalidPosition indicates an insert position outside the allowed range
	ErrInvalidPosition = errors.New("arxml: invalid position")

	// ErrCycle indicates a move below the moved element itself
	ErrCycle = errors.New("arxml: cycle")

	// ErrReferenceResolution indicates a reference path without a live target
	ErrReferenceResolution = errors.New("arxml: reference resolution failed")

	// ErrFile indicates a filename collision or an I/O failure
	ErrFile = errors.New("arxml: file error")

	// ErrParse indicates malformed or nonconformant ARXML input
	ErrParse = errors.New("arxml: parse error")

	// ErrNotIdentifiable indicates a path operation on an element without SHORT-NAME
	ErrNotIdentifiable = errors.New("arxml: element is not identifiable")

	// ErrInvalidReference indicates a reference without data or with a mismatched DEST
	ErrInvalidReference = errors.New("arxml: invalid reference")

	// ErrElementRemoved indicates a handle whose element no longer exists
	ErrElementRemoved = errors.New("arxml: element removed")

	// ErrInvalidFile indicates a file that is not part of the model
	ErrInvalidFile = errors.New("arxml: invalid file")
)

// Kind classifies an Error
type Kind uint8

const (
	KindSchemaViolation Kind = iota + 1
	KindIncorrectContentType
	KindDuplicateName
	KindInvalidPosition
	KindCycle
	KindReferenceResolution
	KindFile
	KindParse
	KindNotIdentifiable
	KindInvalidReference
	KindElementRemoved
	KindInvalidFile
)

var kindSentinels = map[Kind]error{
	KindSchemaViolation:      ErrSchemaViolation,
	KindIncorrectContentType: ErrIncorrectContentType,
	KindDuplicateName:        ErrDuplicateName,
	KindInvalidPosition:      ErrInvalidPosition,
	KindCycle:                ErrCycle,
	KindReferenceResolution:  ErrReferenceResolution,
	KindFile:                 ErrFile,
	KindParse:                ErrParse,
	KindNotIdentifiable:      ErrNotIdentifiable,
	KindInvalidReference:     ErrInvalidReference,
	KindElementRemoved:       ErrElementRemoved,
	KindInvalidFile:          ErrInvalidFile,
}

var kindNames = map[Kind]string{
	KindSchemaViolation:      "SchemaViolation",
	KindIncorrectContentType: "IncorrectContentType",
	KindDuplicateName:        "DuplicateName",
	KindInvalidPosition:      "InvalidPosition",
	KindCycle:                "Cycle",
	KindReferenceResolution:  "ReferenceResolution",
	KindFile:                 "File",
	KindParse:                "Parse",
	KindNotIdentifiable:      "NotIdentifiable",
	KindInvalidReference:     "InvalidReference",
	KindElementRemoved:       "ElementRemoved",
	KindInvalidFile:          "InvalidFile",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is returned by every fallible tree operation
type Error struct {
	Kind    Kind
	Msg     string
	Element string // xml path of the element involved, if any
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Element != "" {
		msg = e.Element + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "arxml: " + msg
}

// Unwrap exposes both the kind sentinel and the cause
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ErrorKind extracts the Kind of err, or 0 if err is not an *Error
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
