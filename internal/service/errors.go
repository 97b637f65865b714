package service

import "errors"

// Errors returned by host lifecycle operations. Transport layers branch on
// these with errors.Is to pick response codes.
var (
	// ErrHostNotFound is returned when no host exists for the given ID
	ErrHostNotFound = errors.New("host not found")

	// ErrDuplicateDaemonURL is returned when creating a host whose daemon
	// endpoint is already registered
	ErrDuplicateDaemonURL = errors.New("daemon URL already registered")

	// ErrHostInactive is returned when a gated operation hits a host whose
	// daemon failed its last probe
	ErrHostInactive = errors.New("host is not active")

	// ErrCapacityTooSmall is returned when an update would set capacity
	// below the number of clusters already placed
	ErrCapacityTooSmall = errors.New("capacity below current cluster count")

	// ErrClustersPresent is returned when deleting or resetting a host that
	// still carries clusters
	ErrClustersPresent = errors.New("host still carries clusters")

	// ErrInvalidArgument is returned when request parameters fail validation
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDaemonSetup is returned when preparing the daemon for a new host fails
	ErrDaemonSetup = errors.New("daemon setup failed")

	// ErrDaemonReset is returned when wiping managed state off the daemon fails
	ErrDaemonReset = errors.New("daemon reset failed")

	// ErrProvisionFailed is returned when the cluster subsystem refuses a
	// synchronous provisioning call
	ErrProvisionFailed = errors.New("cluster provisioning failed")
)
