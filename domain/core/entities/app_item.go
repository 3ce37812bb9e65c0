package entities

import (
	"fmt"
	"strings"
)

// AppStatus is the sovereignty classification of an installed package.
type AppStatus string

const (
	StatusFOSS        AppStatus = "FOSS"
	StatusProprietary AppStatus = "PROP"
	StatusUnknown     AppStatus = "UNKN"
)

// IsValid reports whether s is one of the three known statuses.
func (s AppStatus) IsValid() bool {
	switch s {
	case StatusFOSS, StatusProprietary, StatusUnknown:
		return true
	}
	return false
}

// ParseAppStatus accepts the wire codes as well as a few spelled-out forms.
func ParseAppStatus(raw string) (AppStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FOSS":
		return StatusFOSS, nil
	case "PROP", "PROPRIETARY":
		return StatusProprietary, nil
	case "UNKN", "UNKNOWN":
		return StatusUnknown, nil
	}
	return "", fmt.Errorf("unknown app status %q", raw)
}

// InstalledPackage is one entry of the device inventory as reported by the
// platform. KnownFOSS carries a FOSS determination made outside the catalog.
type InstalledPackage struct {
	PackageName string `json:"packageName" yaml:"package"`
	Label       string `json:"label" yaml:"label"`
	KnownFOSS   bool   `json:"knownFoss,omitempty" yaml:"foss,omitempty"`
}

// AppItem is a classified installed package. Items are produced fresh by each
// scan and never mutated afterwards.
type AppItem struct {
	PackageName string    `json:"packageName"`
	Label       string    `json:"label"`
	Status      AppStatus `json:"status"`
}

// Matches reports whether the label or package name contains query,
// ignoring case. An empty query matches everything.
func (a AppItem) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Label), q) ||
		strings.Contains(strings.ToLower(a.PackageName), q)
}
