// Package contacts stores the recipient list in a CSV file.
//
// The file is the interchange format the operator edits and imports/exports
// (header phone,name,message,enabled; lines starting with # are skipped).
// Ids are dense ordinals derived from file position and are reassigned on
// deletion. Every mutation is a whole-file read-modify-write under one lock.
package contacts
