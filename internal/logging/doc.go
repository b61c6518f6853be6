// Package logging builds the slog loggers photoferry writes to.
//
// Two formats exist. The console format puts the component and the
// batch/stage scope at fixed positions so a run reads top to bottom; the JSON
// format keeps every field, including run_id and the failure kind of logged
// errors. WithContext copies run, batch, and stage values from a context onto
// a logger.
package logging
