package appliance

import (
	"fmt"
	"net/url"
	"strings"
)

// PathFromLink turns a hyperlink found in a response, such as
// https://localhost/mgmt/tm/net/vlan/~Common~external/interfaces?ver=16.1.0,
// into a resource path usable with Handle.List.
func PathFromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", link, err)
	}

	path := u.Path
	if path == "" {
		return "", fmt.Errorf("link %q has no path", link)
	}

	return strings.TrimPrefix(path, "/mgmt"), nil
}
