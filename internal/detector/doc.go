// Package detector decides, for every probe outcome, whether a host's status
// changed since it was last recorded, and applies the resulting history
// append, result update and alert messages.
package detector
