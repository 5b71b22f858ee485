package models

// File permissions
const (
	PermissionFile      = 0600
	PermissionDirectory = 0750
)
