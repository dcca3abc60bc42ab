package schema

import "fmt"

// VersionError reports a hard failure while applying one version.
type VersionError struct {
	Module    string
	Version   string
	Direction Direction
	Err       error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s of %s version %s failed: %v", e.Direction, e.Module, e.Version, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}
