// Package domain contains the error values and shared types of the
// résumé rendering service.
package domain
