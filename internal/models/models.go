// Package models contains the data structures shared across the application.
package models

// ModuleResult is the outcome record of one detection module.
type ModuleResult struct {
	Name     string `json:"name"`
	Positive bool   `json:"positive"`
	Result   any    `json:"result"`
}

// Payload defines the structure for a single injection string in a payload file.
type Payload struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}
