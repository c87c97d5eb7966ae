// Package model defines the shared data types of photomap: cached photo
// records, combined dataset rows and grouping modes.
package model
