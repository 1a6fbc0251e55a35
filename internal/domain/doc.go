// Package domain contains the core business entities and their
// validation rules: media blobs and their pending/committed/expired
// lifecycle, curated and trending topics, actors with their image
// generation state machine, and artifacts with their pages.
//
// Domain types carry no persistence or transport concerns. Status fields
// are typed strings persisted as plain text columns; transitions are
// guarded by functions in this package so that every caller shares one
// definition of the state machines.
package domain
