// Package reconcile decides what to do with a local .env file when the
// server holds a version of the same environment.
package reconcile

import (
	"time"

	"github.com/atinyakov/envmanager/internal/envfile"
)

// Action is the outcome of Decide.
type Action int

const (
	// Skip leaves the local file untouched.
	Skip Action = iota
	// Overwrite replaces the local file with the remote variables.
	Overwrite
	// AskUser requires confirmation before overwriting.
	AskUser
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Overwrite:
		return "overwrite"
	case AskUser:
		return "ask-user"
	default:
		return "unknown"
	}
}

// Reason explains a Decision.
type Reason string

const (
	ReasonForced       Reason = "forced"
	ReasonCreated      Reason = "local file missing"
	ReasonUpToDate     Reason = "already up to date"
	ReasonContentMatch Reason = "content matches"
	ReasonLocalNewer   Reason = "local file modified after the server version"
	ReasonRemoteNewer  Reason = "server version is newer"
)

// Input is everything Decide looks at.
type Input struct {
	Force bool
	// Local is the current state of the .env file.
	Local envfile.State
	// LastSynced is the server timestamp recorded by the last pull, if any.
	LastSynced *time.Time
	// RemoteModified is the server's last modification time; zero when unknown.
	RemoteModified time.Time
	RemoteVars     map[string]string
}

// Decision is the result of Decide.
type Decision struct {
	Action Action
	Reason Reason
}

// Reference is the local point in time the remote state is compared with:
// the recorded lastSynced when present, otherwise the file's mtime.
func Reference(local envfile.State, lastSynced *time.Time) time.Time {
	if lastSynced != nil && !lastSynced.IsZero() {
		return *lastSynced
	}
	return local.ModTime
}

// UpToDate reports whether a remote modification time is known and not
// after reference.
func UpToDate(reference, remote time.Time) bool {
	return !remote.IsZero() && !reference.IsZero() && !remote.After(reference)
}

// Decide picks the action for one pull.
func Decide(in Input) Decision {
	if in.Force {
		return Decision{Overwrite, ReasonForced}
	}
	if !in.Local.Exists {
		return Decision{Overwrite, ReasonCreated}
	}
	if UpToDate(Reference(in.Local, in.LastSynced), in.RemoteModified) {
		return Decision{Skip, ReasonUpToDate}
	}
	if envfile.Equal(in.Local.Vars, in.RemoteVars) {
		return Decision{Skip, ReasonContentMatch}
	}
	if in.Local.ModTime.After(in.RemoteModified) {
		return Decision{AskUser, ReasonLocalNewer}
	}
	return Decision{Overwrite, ReasonRemoteNewer}
}
