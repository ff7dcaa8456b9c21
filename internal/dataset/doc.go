// Package dataset manages the per-voice working tree: clip storage, the
// pipe-delimited transcript manifest, and dataset admission checks.
package dataset
