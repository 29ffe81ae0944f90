package datastore

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/errors"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	Save(event *Event) error
	Get(eventID string) (Event, error)
	Delete(eventID string) error
	GetAll() ([]Event, error)
	Oldest(limit int) ([]Event, error)
	CountByCamera(cameraName string) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for the configured backend, or nil when persistence
// is disabled.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// Save inserts a new event, assigning its UUID when empty.
func (ds *DataStore) Save(event *Event) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if err := ds.DB.Create(event).Error; err != nil {
		return errors.New(fmt.Errorf("saving event: %w", err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("event_type", event.EventType).
			Build()
	}
	return nil
}

// Get retrieves an event by its UUID.
func (ds *DataStore) Get(eventID string) (Event, error) {
	if ds.DB == nil {
		return Event{}, errNotOpen()
	}
	var event Event
	if err := ds.DB.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, errors.Newf("event %s not found", eventID).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return Event{}, errors.New(fmt.Errorf("getting event %s: %w", eventID, err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return event, nil
}

// Delete removes an event by its UUID. Deleting an unknown id is an error.
func (ds *DataStore) Delete(eventID string) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	res := ds.DB.Where("event_id = ?", eventID).Delete(&Event{})
	if res.Error != nil {
		return errors.New(fmt.Errorf("deleting event %s: %w", eventID, res.Error)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	if res.RowsAffected == 0 {
		return errors.Newf("event %s not found", eventID).
			Category(errors.CategoryNotFound).
			Component("datastore").
			Build()
	}
	return nil
}

// GetAll returns the full catalog, newest first.
func (ds *DataStore) GetAll() ([]Event, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	var events []Event
	if err := ds.DB.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing events: %w", err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return events, nil
}

// Oldest returns up to limit events, oldest first. Quota pruning walks the
// catalog in this order.
func (ds *DataStore) Oldest(limit int) ([]Event, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	var events []Event
	if err := ds.DB.Order("timestamp ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing oldest events: %w", err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return events, nil
}

// CountByCamera returns the number of events for one camera name.
func (ds *DataStore) CountByCamera(cameraName string) (int64, error) {
	if ds.DB == nil {
		return 0, errNotOpen()
	}
	var count int64
	if err := ds.DB.Model(&Event{}).Where("camera_name = ?", cameraName).Count(&count).Error; err != nil {
		return 0, errors.New(fmt.Errorf("counting events for %s: %w", cameraName, err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

func errNotOpen() error {
	return errors.Newf("database connection is not initialized").
		Category(errors.CategoryState).
		Component("datastore").
		Build()
}
