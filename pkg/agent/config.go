package agent

import "github.com/padforge/padforge/internal/padsvc"

// Config holds the agent-level settings. Only the profiles file is
// live-reloaded; everything else requires a restart.
type Config struct {
	DataDir        string        `json:"dataDir"`
	ProfilesConfig string        `json:"profilesConfig"`
	QuirksDir      string        `json:"quirksDir"`
	Pad            padsvc.Config `json:"pad"`
}
