package models

import "coverage-service/internal/utils"

// CoverageResponse answers "does this region have fiber" lookups.
type CoverageResponse struct {
	Region  string        `json:"region"`
	Status  string        `json:"status"`
	Details utils.JSONMap `json:"details"`
}
