// Package decisionlog owns the append-only decision log: one immutable JSON
// record per processed email, stored under UTC day partitions. It defines the
// Store contract, the loosely typed Record document, verdict patching, and the
// field extractor that every reader uses to resolve display values from records
// written by different upstream schema versions.
package decisionlog
