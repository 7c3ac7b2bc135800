package importer

import "fmt"

// ErrorKind classifies import failures.
type ErrorKind int

const (
	InvalidFormat ErrorKind = iota
	NoReadingsFound
	ParseError
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid_format"
	case NoReadingsFound:
		return "no_readings_found"
	case ParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("import_error(%d)", int(k))
	}
}

// ImportError rejects a whole file. Individual bad rows never produce one.
type ImportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Sentinels for errors.Is; matching compares Kind only.
var (
	ErrInvalidFormat   = &ImportError{Kind: InvalidFormat}
	ErrNoReadingsFound = &ImportError{Kind: NoReadingsFound}
	ErrParse           = &ImportError{Kind: ParseError}
)

func (e *ImportError) Error() string {
	switch e.Kind {
	case InvalidFormat:
		return "the file format is not recognized as a blood pressure export"
	case NoReadingsFound:
		return "no blood pressure readings found in the file"
	default:
		if e.Err != nil {
			return fmt.Sprintf("parse error: %s: %v", e.Msg, e.Err)
		}
		return "parse error: " + e.Msg
	}
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func (e *ImportError) Is(target error) bool {
	t, ok := target.(*ImportError)
	return ok && t.Kind == e.Kind
}

func parseError(msg string, err error) *ImportError {
	return &ImportError{Kind: ParseError, Msg: msg, Err: err}
}
