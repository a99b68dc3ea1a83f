package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/storeline/retail_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's owner_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, ownerId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("owner_id = ?", ownerId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's owner_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, ownerId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("owner_id = ?", ownerId)
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

// check if id exists, scoped by owner_id, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, ownerId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, ownerId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, ownerId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, ownerId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, ownerId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE owner_id = ? AND $condition
// owner_id can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, ownerId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if ownerId != "" {
		dbCtx.Where("owner_id = ?", ownerId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
