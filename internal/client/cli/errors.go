package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/atinyakov/envmanager/internal/client/api"
	"github.com/atinyakov/envmanager/internal/client/storage"
)

const (
	msgNoConfig       = `No configuration found. Please run "envmanager init" first.`
	msgNoGlobalConfig = `No global configuration found. Please run "envmanager config" first.`
	msgAuthFailed     = "Authentication failed. Please check your Secret Key."
	msgNoVariables    = "No variables found in server response."
)

// userError is an error whose message is meant for the terminal. The cause
// stays reachable through errors.Is.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func userErrorf(cause error, format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...), err: cause}
}

// explain turns an error from the store or the API client into a message.
// notFound is used for api.ErrNotFound since only the caller knows what was
// missing.
func explain(err error, serverURL, notFound string) error {
	if err == nil {
		return nil
	}
	var (
		ue *userError
		se *api.StatusError
		ne *url.Error
	)
	switch {
	case errors.As(err, &ue):
		return err
	case errors.Is(err, storage.ErrNotInitialized):
		return userErrorf(err, msgNoConfig)
	case errors.Is(err, api.ErrUnauthorized):
		return userErrorf(err, msgAuthFailed)
	case errors.Is(err, api.ErrNotFound) && notFound != "":
		return userErrorf(err, "%s", notFound)
	case errors.Is(err, api.ErrMissingVariables):
		return userErrorf(err, msgNoVariables)
	case errors.As(err, &se):
		if se.Message != "" {
			return userErrorf(err, "Server error: %d - %s", se.Status, se.Message)
		}
		return userErrorf(err, "Server error: %d", se.Status)
	case errors.As(err, &ne):
		return userErrorf(err, "Failed to connect to server at %s: %v", serverURL, ne.Err)
	}
	return err
}
