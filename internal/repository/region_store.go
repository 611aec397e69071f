package repository

import "coverage-service/internal/models"

// RegionTx is the transactional slice of the store contract the import
// pipeline runs against. FindByName is an exact, case-sensitive match;
// Insert assigns the region ID and surfaces models.ErrDuplicateName when the
// uniqueness constraint fires.
type RegionTx interface {
	FindByName(name string) (*models.Region, error)
	Insert(region *models.Region) error
	Commit() error
	Rollback() error
}

// RegionStore opens transactions for batch imports.
type RegionStore interface {
	Begin() (RegionTx, error)
}
