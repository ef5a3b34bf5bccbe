package agent

// Config points the agent at its data directory and the user-driven
// configuration files. Only the user-driven files are live-reloaded.
type Config struct {
	DataDir       string `json:"dataDir"`
	DevicesConfig string `json:"devicesConfig"`
	// EnablePointer forwards decoded motion and buttons to a virtual
	// pointer device on hosts that support it.
	EnablePointer bool `json:"enablePointer"`
}
