package memory

import "flowback-engine/internal/repository"

var _ repository.Store = (*Store)(nil)
