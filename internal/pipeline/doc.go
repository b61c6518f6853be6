// Package pipeline wires the batch stages into one run.
//
// Process discovers batch files in the queue directory and runs one
// independent sub-pipeline per file: parse, fetch every entry, keep the
// earliest entry per filename, persist survivors with their capture time, and
// move the batch file into the queue's done directory. When every batch
// succeeded and the run is not a dry run, Upload sends each file in the images
// directory to the photo library, commits all tokens in one call, and moves
// the uploaded files into the images done directory.
//
// Non-dry runs hold an exclusive file lock for their whole duration and record
// themselves in the ledger. Dry runs never create, move, or delete a file.
package pipeline
