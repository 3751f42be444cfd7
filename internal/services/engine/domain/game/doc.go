// Package game holds the Dragon Dice table model and the per-session stores
// that the rules components read and mutate.
package game
