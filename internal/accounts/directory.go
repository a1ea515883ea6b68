// Package accounts resolves AWS account IDs to display names for labeling
// scan output. Two sources are supported: a local YAML file and AWS
// Organizations. Name resolution is cosmetic — a lookup miss falls back to
// the raw account ID and never fails a scan.
package accounts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Account is one entry of the account directory.
type Account struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Email  string `yaml:"email,omitempty" json:"email,omitempty"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

// Directory maps account IDs to display names.
type Directory interface {
	// NameFor returns the display name for accountID, falling back to the
	// raw ID when the account is unknown.
	NameFor(accountID string) string

	// Accounts returns every known account.
	Accounts() []Account
}

// StaticDirectory is a Directory backed by an in-memory account list.
type StaticDirectory struct {
	accounts []Account
	byID     map[string]string
}

// NewStaticDirectory builds a directory from the supplied accounts.
func NewStaticDirectory(list []Account) *StaticDirectory {
	byID := make(map[string]string, len(list))
	for _, a := range list {
		if a.ID != "" && a.Name != "" {
			byID[a.ID] = a.Name
		}
	}
	return &StaticDirectory{accounts: list, byID: byID}
}

// NameFor implements Directory.
func (d *StaticDirectory) NameFor(accountID string) string {
	if name, ok := d.byID[accountID]; ok {
		return name
	}
	return accountID
}

// Accounts implements Directory.
func (d *StaticDirectory) Accounts() []Account {
	return d.accounts
}

// accountsFile is the on-disk YAML shape:
//
//	accounts:
//	  - id: "111111111111"
//	    name: prod
type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadFile reads an accounts YAML file and returns a directory over it.
func LoadFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file %q: %w", path, err)
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file %q: %w", path, err)
	}

	for _, a := range f.Accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("accounts file %q: entry with empty id", path)
		}
	}

	return NewStaticDirectory(f.Accounts), nil
}
