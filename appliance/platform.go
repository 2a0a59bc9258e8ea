package appliance

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

const (
	PlatformBIGIP     = "BIG-IP"
	PlatformBIGIQ     = "BIG-IQ"
	PlatformContainer = "CONTAINER"
)

const (
	defaultBIGIPMarker = "/usr/bin/tmsh"
	defaultBIGIQMarker = "/usr/share/rest/node/src/bigiq"
)

// DetectPlatform works out what kind of system the process is running on by
// looking for files that only exist on that platform.
func DetectPlatform(ctx context.Context, bigipMarker, bigiqMarker string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if bigipMarker == "" {
		bigipMarker = defaultBIGIPMarker
	}
	if bigiqMarker == "" {
		bigiqMarker = defaultBIGIQMarker
	}

	ok, err := exists(bigiqMarker)
	if err != nil {
		return "", err
	}
	if ok {
		return PlatformBIGIQ, nil
	}

	ok, err = exists(bigipMarker)
	if err != nil {
		return "", err
	}
	if ok {
		return PlatformBIGIP, nil
	}

	return PlatformContainer, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}
