package checkpoint

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// IOError is a filesystem failure while reading or writing a checkpoint.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SerializationError is a checkpoint that could not be encoded or decoded.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("checkpoint %s: malformed: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Save writes s to path atomically: the encoded state goes to a temporary
// file in the same directory, which is synced and renamed over path.
func Save(path string, s *State) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return &SerializationError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Path: path, Err: err}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	tmp := f.Name()

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	return nil
}

func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, &SerializationError{Path: path, Err: err}
	}
	return s, nil
}
