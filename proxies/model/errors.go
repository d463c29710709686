package model

import (
	"errors"
	"strconv"
)

var (
	// ErrSignatureMismatch is returned when a forwarding target declares a method
	// the source type cannot serve with identical parameter types.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrInvalidTarget is returned when an operation gets the wrong kind of type
	// (a class where an interface is required, or the reverse), or when an
	// object is reinterpreted as something it was not generated as.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrUnimplemented is returned when a stub method without a body is invoked.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrInternalInvariant marks a bug in a synthesizer. It is never returned,
	// only carried by panics.
	ErrInternalInvariant = errors.New("internal invariant violation")

	// ErrNoSuchMember is returned by dynamic calls naming a method or property
	// the synthesized type does not expose.
	ErrNoSuchMember = errors.New("no such member")

	// ErrInvalidArgument is returned when call arguments do not fit the
	// declared parameter types.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNilBase is returned when a lazy factory produced no instance.
	ErrNilBase = errors.New("lazy factory returned nil")
)

// SignatureMismatchError names the missing method and both sides of a
// forwarding binding.
type SignatureMismatchError struct {
	Method string
	Source string
	Target string
}

// Error implements the error interface.
func (e *SignatureMismatchError) Error() string {
	// Example: NoSuchMethod is not implemented by *pkg.Src as required by the pkg.Target interface
	return e.Method + " is not implemented by " + e.Source + " as required by the " + e.Target + " interface"
}

// Unwrap lets errors.Is match ErrSignatureMismatch.
func (e *SignatureMismatchError) Unwrap() error { return ErrSignatureMismatch }

// UnimplementedError is raised by stub methods that have no body.
type UnimplementedError struct {
	Method string
	Type   string
}

// Error implements the error interface.
func (e *UnimplementedError) Error() string {
	return "the method " + strconv.Quote(e.Method) + " is not implemented by " + e.Type
}

// Unwrap lets errors.Is match ErrUnimplemented.
func (e *UnimplementedError) Unwrap() error { return ErrUnimplemented }
