// Package monitor drives one monitoring run: it loads the host list and the
// stored state, then probes every host once per scheme, feeding outcomes
// through the change detector and flushing alerts at the end of each pass.
package monitor
