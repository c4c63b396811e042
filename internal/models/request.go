package models

// DeployRequest describes a single deployment of a package version onto the
// machines of a reservation. Machines[0] is the master node, the remaining
// machines are workers.
type DeployRequest struct {
	PackageID     string
	Version       string
	ReservationID string
	Machines      []string
	Settings      map[string]string

	// Reinstall removes an existing install directory before installing.
	Reinstall bool
}

// InstallRequest describes installing a package version without bringing it up.
type InstallRequest struct {
	PackageID     string
	Version       string
	ReservationID string // only used by environment-backed packages
	Reinstall     bool
}
