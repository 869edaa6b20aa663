package controller

import "errors"

var (
	ErrPlatformUnavailable = errors.New("platform api unavailable")
	ErrOracleUnavailable   = errors.New("oracle unavailable")
	ErrOracleMalformed     = errors.New("malformed oracle response")
	ErrNoOwningDeployment  = errors.New("no owning deployment")
	ErrUnknownAction       = errors.New("unknown action kind")
)
