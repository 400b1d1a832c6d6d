package charge

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ReadRepositoryData decodes a repository document of the form
// {iacm: {shell: {key: [charges]}}, elem: {...}}, in YAML or JSON.
func ReadRepositoryData(r io.Reader) (*RepositoryData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to read repository")
	}
	raw = bytes.TrimSpace(raw)
	d := &RepositoryData{}
	if len(raw) == 0 {
		return d, nil
	}
	if raw[0] == '{' {
		err = json.Unmarshal(raw, d)
	} else {
		err = yaml.Unmarshal(raw, d)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode repository")
	}
	return d, nil
}

// WriteRepositoryData encodes d as YAML.
func WriteRepositoryData(w io.Writer, d *RepositoryData) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode repository")
	}
	return enc.Close()
}

// ReadRepositoryFile reads a repository document from path.
func ReadRepositoryFile(path string) (*RepositoryData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to open repository file").
			WithDetail("path=" + path)
	}
	defer f.Close()
	return ReadRepositoryData(f)
}

// LoadRepositoryFile reads a repository document from path.
func LoadRepositoryFile(path string) (*Repository, error) {
	d, err := ReadRepositoryFile(path)
	if err != nil {
		return nil, err
	}
	return d.Repository(), nil
}

// SaveRepositoryFile writes d to path, replacing any existing file.
func SaveRepositoryFile(path string, d *RepositoryData) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to create repository file").
			WithDetail("path=" + path)
	}
	if err := WriteRepositoryData(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

//Personal.AI order the ending
