package protocol

// Directory and path constants used throughout Atelier.
const (
	// AtelierDir is the user-level state directory (e.g., ~/.atelier).
	AtelierDir = ".atelier"

	// StateDBName is the coordinator state database file name.
	StateDBName = "state.db"

	// ConfigYAMLName and ConfigTOMLName are the recognized config file names,
	// checked in that order.
	ConfigYAMLName = "config.yaml"
	ConfigTOMLName = "config.toml"

	// LogFileName is the slog JSON log file under the state directory.
	LogFileName = "atelier.log"
)
