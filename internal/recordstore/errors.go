package recordstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecord means a lookup matched nothing.
	ErrNoRecord = errors.New("recordstore: no matching record")
	// ErrWrongItemCount means a lookup that must be unique matched several records.
	ErrWrongItemCount = errors.New("recordstore: lookup matched more than one record")
)

// ErrorKind classifies what went wrong with a single request.
type ErrorKind int

const (
	// KindTransport covers connection failures and requests that never got a response.
	KindTransport ErrorKind = iota + 1
	// KindStatus is a response with a non-2xx status.
	KindStatus
	// KindDecode is a 2xx response whose body could not be decoded.
	KindDecode
	// KindAttach is a local file that could not be read into a multipart body.
	KindAttach
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindAttach:
		return "attach"
	default:
		return "unknown"
	}
}

// APIError is the JSON body the backend sends with 400 responses.
type APIError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// RequestError describes one failed HTTP exchange.
type RequestError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Detail     *APIError
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Kind == KindStatus && e.Detail != nil && e.Detail.Message != "":
		return fmt.Sprintf("recordstore: %s: status %d: %s", e.Op, e.StatusCode, e.Detail.Message)
	case e.Kind == KindStatus:
		return fmt.Sprintf("recordstore: %s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("recordstore: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// FetchError is returned when the remote chapter list of a manga could not be
// read in full. Pages read before the failure are discarded.
type FetchError struct {
	MangaID string
	Page    int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch chapters of manga %s: page %d: %v", e.MangaID, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the request error kind wrapped in err, or 0.
func KindOf(err error) ErrorKind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

type attachError struct {
	path string
	err  error
}

func (e *attachError) Error() string { return fmt.Sprintf("attach %s: %v", e.path, e.err) }
func (e *attachError) Unwrap() error { return e.err }
