package keystore

import (
	"errors"
	"io/fs"
)

// Credentials are the WiFi credentials set through provisioning.
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// CredentialsFile keeps Credentials in a JSON file.
type CredentialsFile struct {
	path string
}

// NewCredentials returns a credentials store that keeps its record at path.
func NewCredentials(path string) *CredentialsFile {
	return &CredentialsFile{path: path}
}

// Load returns the saved credentials and whether there were any.
func (f *CredentialsFile) Load() (Credentials, bool, error) {
	var c Credentials
	if err := readJSON(f.path, &c); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, err
	}
	return c, true, nil
}

func (f *CredentialsFile) Save(c Credentials) error {
	return writeJSON(f.path, c)
}

func (f *CredentialsFile) Remove() error {
	return removeFile(f.path)
}
