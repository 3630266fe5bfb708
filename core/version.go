package core

// Build information. Populated at build-time.
var (
	Version   = "0.0.0"
	GitSHA    = "0000000"
	BuildTime = ""
)
