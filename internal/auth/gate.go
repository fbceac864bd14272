package auth

import (
	"errors"
	"fmt"
	"strings"

	"weathermap/internal/catalog"
)

var (
	// ErrViewerDenied rejects map creation for read-only accounts.
	ErrViewerDenied = errors.New("viewers cannot create maps")

	// ErrRestrictedHost rejects deployment by non-admins to protected hosts.
	ErrRestrictedHost = errors.New("restricted server")
)

// AuthorizeMapCreation decides whether an account with the given privilege
// may deploy a map to the resolved installations. The whole set is checked
// before any work starts: one restricted member denies the entire group.
//
// Hostnames ending in "1" mark core infrastructure reserved for admins.
func AuthorizeMapCreation(privilege Privilege, installations []catalog.Installation) error {
	switch privilege {
	case PrivilegeAdmin:
		return nil
	case PrivilegeUser:
		for _, inst := range installations {
			hostname := strings.TrimSpace(inst.Hostname)
			if strings.HasSuffix(hostname, "1") {
				return fmt.Errorf("%w: users cannot upload to %q", ErrRestrictedHost, hostname)
			}
		}
		return nil
	default:
		// viewer, and anything unrecognized, is read-only
		return ErrViewerDenied
	}
}
