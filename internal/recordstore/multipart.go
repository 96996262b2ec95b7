package recordstore

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type formFile struct {
	field string
	path  string
}

// form is a multipart body described up front and streamed on demand, so
// only one attached file is open at a time.
type form struct {
	fields [][2]string
	files  []formFile
}

func (f *form) field(name, value string) *form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

func (f *form) file(field, path string) *form {
	if path != "" {
		f.files = append(f.files, formFile{field: field, path: path})
	}
	return f
}

// check stats every attachment so a missing file fails before any bytes are
// sent.
func (f *form) check(op string) error {
	for _, ff := range f.files {
		info, err := os.Stat(ff.path)
		if err == nil && info.IsDir() {
			err = fmt.Errorf("is a directory")
		}
		if err != nil {
			return &RequestError{Op: op, Kind: KindAttach, Err: &attachError{path: ff.path, err: err}}
		}
	}
	return nil
}

// stream returns a reader producing the encoded body and its content type.
// The writer goroutine exits once the reader is drained or closed.
func (f *form) stream() (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := f.write(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func (f *form) write(mw *multipart.Writer) error {
	for _, kv := range f.fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for _, ff := range f.files {
		if err := writeFile(mw, ff); err != nil {
			return err
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func writeFile(mw *multipart.Writer, ff formFile) error {
	mt, err := mimetype.DetectFile(ff.path)
	if err != nil {
		return &attachError{path: ff.path, err: err}
	}

	src, err := os.Open(ff.path)
	if err != nil {
		return &attachError{path: ff.path, err: err}
	}
	defer src.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(ff.field), quoteEscaper.Replace(filepath.Base(ff.path))))
	h.Set("Content-Type", mt.String())

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return &attachError{path: ff.path, err: err}
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
