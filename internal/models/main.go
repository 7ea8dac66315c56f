// Package models defines the core data structures shared by the server and the CLI.
package models

import (
	"regexp"
	"time"
)

// EnvData is the stored state of one environment of a project.
type EnvData struct {
	// LastModified is assigned by the server every time the environment is saved.
	LastModified time.Time `json:"lastModified"`
	// Variables holds the full variable set. Keys are unique, order is irrelevant.
	Variables map[string]string `json:"variables"`
}

// EnvStatus is the lightweight status payload used to avoid fetching variables.
type EnvStatus struct {
	LastModified time.Time `json:"lastModified"`
}

// Status returns the status view of the environment.
func (d EnvData) Status() EnvStatus {
	return EnvStatus{LastModified: d.LastModified}
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidName reports whether name is acceptable as a project or environment name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
