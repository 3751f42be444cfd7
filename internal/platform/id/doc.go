// Package id generates opaque identifiers for effects, units and game sessions.
package id
