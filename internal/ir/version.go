package ir

// Version constants for the schema IR and engine.
const (
	// IRVersion is the schema IR version.
	IRVersion = "1"

	// EngineVersion is the derive engine version.
	EngineVersion = "0.1.0"
)
