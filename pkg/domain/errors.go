package domain

import "errors"

// ErrSessionNotFound is returned when a call identifier is not in the live session set.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose call identifier is already live.
var ErrSessionExists = errors.New("session already exists")

// ErrUnknownMenu is returned when a menu identifier is not declared in the catalog.
var ErrUnknownMenu = errors.New("unknown menu")

// ErrInvalidFormat is returned by record resolvers when the collected buffer fails validation.
var ErrInvalidFormat = errors.New("invalid record reference format")

// ErrRecordNotFound is returned by record resolvers when the reference is well formed but unknown.
var ErrRecordNotFound = errors.New("record not found")

// ErrLookupInFlight is returned when input arrives for a call whose record lookup has not completed.
var ErrLookupInFlight = errors.New("record lookup in progress")
