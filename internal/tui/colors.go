package tui

// Color constants for the whisp TUI theme
const (
	// Base Colors
	ColorAppBackground  = ""        // Use terminal default background
	ColorCardBackground = "#1B1530" // Dark purple
	ColorBorder         = "#3A3F55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2" // Titles, transcript text
	ColorSecondaryText = "#B1B8C7" // Metadata, captions
	ColorDisabledText  = "#6D7383" // Muted text, paused waveform
	ColorPlaceholder   = "#B1B8C7"
	ColorHelpText      = "240" // Dark grey for help text

	// Accent Colors (Purple theme)
	ColorAccentMain   = "#7C3AED" // Logo, active borders, live waveform
	ColorAccentBright = "#A78BFA" // Clock, highlights

	// State Colors
	ColorRecording = "#F43F5E" // Recording badge
	ColorError     = "#EF4444"
	ColorSuccess   = "#22C55E"
	ColorWarning   = "#F59E0B"

	// Waveform bars with no captured sample yet
	ColorNoSignal = "#2A2E3D"
)
