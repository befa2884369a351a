// Package ingest feeds records into the task services: it decodes
// newline-delimited JSON files, writes one outcome line per processed
// record and watches an inbox directory for new files.
package ingest
