package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing user, recipe or asset reference.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is the user-specific form of ErrNotFound.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrInvalidCredential indicates a password that does not match the stored verifier.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrDuplicateLogin is returned when registering a login that is already taken.
	ErrDuplicateLogin = errors.New("login already exists")

	ErrEmptyPatch        = errors.New("empty patch")
	ErrUnknownField      = errors.New("unknown field")
	ErrReadOnlyField     = errors.New("read-only field")
	ErrInvalidValue      = errors.New("invalid value")
	ErrUnknownCollection = errors.New("unknown collection")

	ErrInvalidAsset = errors.New("invalid asset")
	ErrNoAsset      = errors.New("user has no asset")
	ErrAssetWrite   = errors.New("asset write failed")
	ErrAssetRead    = errors.New("asset read failed")
	ErrAssetLink    = errors.New("asset link failed")

	// ErrStore wraps storage failures that have no more specific meaning.
	ErrStore = errors.New("store error")
)
