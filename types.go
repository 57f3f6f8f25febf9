package main

// HideOptions holds the parameters of the hide command
type HideOptions struct {
	Input       string
	Output      string
	Message     string
	MessageFile string
}

// RevealOptions holds the parameters of the reveal command
type RevealOptions struct {
	Input string
}

// ServeOptions holds command-line overrides for the server configuration
type ServeOptions struct {
	ConfigPath   string
	Addr         string
	MaxUploadMB  int
	OutputFormat string
}
