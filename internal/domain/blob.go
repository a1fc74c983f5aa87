package domain

import (
	"bytes"
	"fmt"
	"io"
)

// Blob is a named file body kept by a blob store, such as an avatar image.
type Blob struct {
	Name string
	Body []byte
}

// NewBlob creates a new Blob with the given name and content.
func NewBlob(name string, body []byte) *Blob {
	return &Blob{
		Name: name,
		Body: body,
	}
}

// Size returns the size of the blob's content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// Read returns a reader over the blob's content.
func (blob *Blob) Read() io.Reader {
	return bytes.NewReader(blob.Body)
}

// WriteTo implements io.WriterTo.
func (blob *Blob) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(blob.Body)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// ReadFrom implements io.ReaderFrom, replacing the blob's content.
func (blob *Blob) ReadFrom(reader io.Reader) (int64, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("read all: %w", err)
	}

	blob.Body = body

	return int64(len(body)), nil
}
