package queries

import sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"

var (
	_ sharedApplication.QueryHandler[DetectConflictsQuery, []ConflictDTO]     = (*DetectConflictsHandler)(nil)
	_ sharedApplication.QueryHandler[ListConflictsQuery, []ConflictDTO]       = (*ListConflictsHandler)(nil)
	_ sharedApplication.QueryHandler[UtilizationReportQuery, *UtilizationDTO] = (*UtilizationReportHandler)(nil)
)
