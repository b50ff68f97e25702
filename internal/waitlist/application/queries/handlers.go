package queries

import "github.com/felixgeelhaar/cohort/internal/shared/application"

var _ application.QueryHandler[GetWaitlistQuery, *WaitlistDTO] = (*GetWaitlistHandler)(nil)
