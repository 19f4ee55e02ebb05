// Package keystore persists learned keys and provisioning credentials as JSON
// files.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"libdb.so/irrelay"
)

// Record is the on-disk schema of a key set. Protocols are stored by their
// numeric tag and codeRepeat as 0 or 1.
type Record struct {
	RelayA     uint64 `json:"relaya"`
	RelayB     uint64 `json:"relayb"`
	RelayC     uint64 `json:"relayc"`
	RelayD     uint64 `json:"relayd"`
	DeviceE    uint64 `json:"deve"`
	DeviceFOn  uint64 `json:"devfon"`
	DeviceFOff uint64 `json:"devfoff"`
	Reset      uint64 `json:"reset"`
	CodeType   int    `json:"codeType"`
	CodeLen    int    `json:"codeLen"`
	CodeRepeat int    `json:"codeRepeat"`
}

// NewRecord converts a key set to its on-disk form.
func NewRecord(k irrelay.KeySet) Record {
	r := Record{
		RelayA:     k.RelayA,
		RelayB:     k.RelayB,
		RelayC:     k.RelayC,
		RelayD:     k.RelayD,
		DeviceE:    k.DeviceE,
		DeviceFOn:  k.DeviceFOn,
		DeviceFOff: k.DeviceFOff,
		Reset:      k.Reset,
		CodeType:   int(k.CodeType),
		CodeLen:    k.CodeLen,
	}
	if k.CodeRepeat {
		r.CodeRepeat = 1
	}
	return r
}

// KeySet converts the record back to a key set.
func (r Record) KeySet() irrelay.KeySet {
	return irrelay.KeySet{
		RelayA:     r.RelayA,
		RelayB:     r.RelayB,
		RelayC:     r.RelayC,
		RelayD:     r.RelayD,
		DeviceE:    r.DeviceE,
		DeviceFOn:  r.DeviceFOn,
		DeviceFOff: r.DeviceFOff,
		Reset:      r.Reset,
		CodeType:   irrelay.Protocol(r.CodeType),
		CodeLen:    r.CodeLen,
		CodeRepeat: r.CodeRepeat != 0,
	}
}

// File is a KeyStore backed by a JSON file.
type File struct {
	path string
}

var _ irrelay.KeyStore = (*File)(nil)

// New returns a key store that keeps its record at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file path used by this store.
func (f *File) Path() string { return f.path }

// Load implements [irrelay.KeyStore]. A missing file yields an empty key set.
func (f *File) Load() (irrelay.KeySet, error) {
	var r Record
	if err := readJSON(f.path, &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return irrelay.KeySet{}, nil
		}
		return irrelay.KeySet{}, err
	}
	if r.CodeLen < 0 {
		return irrelay.KeySet{}, fmt.Errorf("%w: negative codeLen %d", irrelay.ErrMalformedRecord, r.CodeLen)
	}
	return r.KeySet(), nil
}

// Save implements [irrelay.KeyStore].
func (f *File) Save(keys irrelay.KeySet) error {
	return writeJSON(f.path, NewRecord(keys))
}

// Remove implements [irrelay.KeyStore]. Removing a missing record is not an
// error.
func (f *File) Remove() error {
	return removeFile(f.path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", irrelay.ErrMalformedRecord, filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces the file at path so that readers never see a partial
// record.
func writeJSON(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
