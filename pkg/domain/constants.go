package domain

const (
	// RootMenu is the menu every call starts in.
	RootMenu = "main"

	// DefaultTerminator ends a digit collection when the menu does not declare one.
	DefaultTerminator = "#"
)
