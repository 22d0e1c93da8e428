package model

// Supported datastore drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

// EnvironmentBinding routes a named environment to a physical database.
type EnvironmentBinding struct {
	Name             string
	DisplayName      string
	Driver           string
	ConnectionString string
}
