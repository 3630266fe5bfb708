package core

// DevMode puts the application in to dev mode.
var DevMode = false

// ShowDebugMessages allows for log.Debug to print to console.
var ShowDebugMessages = false

// Provider names the geometry provider used by the clip pipeline.
var Provider = "tidwall"

// SessionPath is the session database path. Use ":memory:" to keep the
// session for the lifetime of the process only.
var SessionPath = "session.db"
