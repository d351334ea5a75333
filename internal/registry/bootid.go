package registry

import "github.com/google/uuid"

// NewBootID mints a unique identifier for one daemon process lifetime,
// used as the map key under RegistryRecord.Daemons.
func NewBootID() string {
	return "boot-" + uuid.New().String()
}
