package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
	"gorm.io/gorm"
)

// Event is a calendar entry: a task assigned to an employee for a time slot.
type Event struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"index;not null" json:"owner_id"`
	Task      string    `gorm:"size:255;not null" json:"task" binding:"required"`
	Employee  string    `gorm:"size:255;not null" json:"employee" binding:"required"`
	StartTime time.Time `gorm:"index;not null" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
	CreatorId int       `gorm:"index" json:"creator_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEvent struct {
	Task      string    `json:"task" binding:"required"`
	Employee  string    `json:"employee" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

func validateEventWindow(input *NewEvent) error {
	if !input.EndTime.After(input.StartTime) {
		return errors.New("event must end after it starts")
	}
	return nil
}

func CreateEvent(ctx context.Context, ownerId string, employeeId int, input *NewEvent) (*Event, error) {

	db := config.GetDB()

	if err := validateEventWindow(input); err != nil {
		return nil, err
	}

	event := Event{
		OwnerId:   ownerId,
		Task:      input.Task,
		Employee:  input.Employee,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		CreatorId: employeeId,
	}
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func UpdateEvent(ctx context.Context, ownerId string, id int, input *NewEvent) (*Event, error) {

	db := config.GetDB()

	if err := validateEventWindow(input); err != nil {
		return nil, err
	}

	var event Event
	err := db.WithContext(ctx).Where("owner_id = ?", ownerId).First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	event.Task = input.Task
	event.Employee = input.Employee
	event.StartTime = input.StartTime
	event.EndTime = input.EndTime
	if err := db.WithContext(ctx).Save(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func DeleteEvent(ctx context.Context, ownerId string, id int) error {

	db := config.GetDB()

	result := db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerId, id).Delete(&Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// ListEvents returns events overlapping [from, to], earliest first.
func ListEvents(ctx context.Context, ownerId string, from time.Time, to time.Time) ([]*Event, error) {

	db := config.GetDB()
	var results []*Event

	dbCtx := db.WithContext(ctx).Where("owner_id = ?", ownerId)
	if !to.IsZero() {
		dbCtx = dbCtx.Where("start_time <= ?", to)
	}
	if !from.IsZero() {
		dbCtx = dbCtx.Where("end_time >= ?", from)
	}
	err := dbCtx.Order("start_time ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
