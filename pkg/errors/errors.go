package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress indicates the input does not parse as an IPv4/IPv6 address
	ErrInvalidAddress = errors.New("invalid IP address")

	// ErrAddressNotFound indicates a valid address is absent from the GeoIP databases
	ErrAddressNotFound = errors.New("address not found in GeoIP database")

	// ErrSourceUnavailable indicates the GeoIP source or a cache backend failed
	ErrSourceUnavailable = errors.New("lookup source unavailable")

	// ErrCacheMiss indicates a key is not present in the cache store
	ErrCacheMiss = errors.New("cache miss")

	// ErrTooManyAddresses indicates a batch request exceeded the address limit
	ErrTooManyAddresses = errors.New("too many addresses")

	// ErrReverseDNS indicates a reverse DNS lookup failed
	ErrReverseDNS = errors.New("reverse DNS lookup failed")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join joins multiple errors into one
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsNotFound checks if an error is an address-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAddressNotFound)
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// IsInvalidAddress checks if an error is an invalid address error
func IsInvalidAddress(err error) bool {
	return errors.Is(err, ErrInvalidAddress)
}
