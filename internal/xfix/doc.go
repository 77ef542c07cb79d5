// Package xfix defines the domain types and collaborator interfaces shared by
// the enrichment agent's subsystems.
package xfix
