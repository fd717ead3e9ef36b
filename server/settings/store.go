package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sosguard/server/logger"
	"sosguard/server/models"
)

var logg = logger.NewLogger()

// Store loads & saves the user settings record. Loads merge the stored
// payload over the built-in defaults so the contact-slot count can evolve
// across versions without losing previously entered contacts.
type Store struct {
	validate *validator.Validate
}

func NewStore(validate *validator.Validate) *Store {
	return &Store{validate: validate}
}

// Load returns the persisted settings merged over defaults. Missing or
// malformed records are never an error - the defaults win.
func (s *Store) Load() (*UserSettings, error) {
	defaults := Defaults()

	record, err := models.FindRecord(StorageKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaults, nil
	}

	if err != nil {
		return nil, err
	}

	return merge(defaults, []byte(record.Payload)), nil
}

// Save validates & overwrites the whole settings record
func (s *Store) Save(userSettings *UserSettings) error {
	if err := s.validate.Struct(userSettings); err != nil {
		return err
	}

	for i := range userSettings.Contacts {
		contact := &userSettings.Contacts[i]

		if contact.Valid() {
			if err := s.validate.Var(contact.Phone, "phone_number"); err != nil {
				return fmt.Errorf("contact %v: invalid phone number %q", i, contact.Phone)
			}
		}

		// Slot ids are assigned at creation & never reused
		if strings.TrimSpace(contact.ID) == "" {
			contact.ID = uuid.NewString()
		}
	}

	payload, err := json.Marshal(userSettings)
	if err != nil {
		return err
	}

	return models.UpsertRecord(StorageKey, string(payload))
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// merge overlays a stored payload onto the defaults. Scalar fields present in
// the payload overwrite defaults(shallow merge); contacts merge positionally
// for slots 0..4 & extra stored contacts are discarded.
func merge(defaults *UserSettings, payload []byte) *UserSettings {
	merged := *defaults

	stored := UserSettings{}
	if err := json.Unmarshal(payload, &stored); err != nil {
		logg.Infof("discarding malformed settings record: %v", err)
		return defaults
	}

	// Unmarshalling over the copy applies the shallow merge for scalar
	// fields; the contact list needs the positional treatment below.
	merged.Contacts = nil
	if err := json.Unmarshal(payload, &merged); err != nil {
		logg.Infof("discarding malformed settings record: %v", err)
		return defaults
	}

	contacts := make([]EmergencyContact, ContactSlots)
	copy(contacts, defaults.Contacts)
	for i, contact := range stored.Contacts {
		if i >= ContactSlots {
			break
		}
		contacts[i] = contact
	}
	merged.Contacts = contacts

	return &merged
}
