package k8s

// PodNotFoundError represents a "not found" case that callers may tolerate.
type PodNotFoundError struct{}

func (e *PodNotFoundError) Error() string {
	return "pod not found"
}

func (e *PodNotFoundError) IsNotFound() {}

var errPodNotFound = &PodNotFoundError{}

// TooManyRequestsError represents API-server throttling.
type TooManyRequestsError struct{}

func (e *TooManyRequestsError) Error() string {
	return "too many requests"
}

func (e *TooManyRequestsError) IsTooManyRequests() {}

var errTooManyRequests = &TooManyRequestsError{}

// UnauthorizedError marks rejected credentials; the control loop treats this
// class as fatal.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}

func (e *UnauthorizedError) IsUnauthorized() {}

var errUnauthorized = &UnauthorizedError{}
