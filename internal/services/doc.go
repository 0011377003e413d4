// Package services holds the error marker conventions and context plumbing
// shared by pipeline stages and their collaborators.
package services
