package scan

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	DirectoryMissing ErrorKind = iota + 1
	MalformedChapterName
	MalformedPageName
	EmptyChapter
	DuplicateChapterIndex
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryMissing:
		return "directory missing"
	case MalformedChapterName:
		return "malformed chapter name"
	case MalformedPageName:
		return "malformed page name"
	case EmptyChapter:
		return "empty chapter"
	case DuplicateChapterIndex:
		return "duplicate chapter index"
	default:
		return "unknown scan error"
	}
}

// ScanError is returned for any problem with the local inventory. Every kind
// is fatal for the manga being scanned.
type ScanError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan: %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("scan: %s: %s", e.Kind, e.Path)
}

func (e *ScanError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *ScanError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ScanError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
