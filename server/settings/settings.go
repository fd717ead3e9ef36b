package settings

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// StorageKey versions the persisted settings shape. Bump it when the
	// stored record needs a non-mergeable change.
	StorageKey = "sos_guard_settings_v4"

	// ContactSlots is the fixed number of emergency contact slots
	ContactSlots = 5

	DefaultAlertMessage = "ESTOU EM PERIGO! Preciso de ajuda urgente. Minha localização segue no link."
)

type EmergencyContact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Valid reports whether the contact can receive an alert
func (c EmergencyContact) Valid() bool {
	return strings.TrimSpace(c.Phone) != ""
}

// DisplayName returns the contact name, falling back to the phone number
func (c EmergencyContact) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}

	return c.Phone
}

type UserSettings struct {
	UserName     string             `json:"userName"`
	BloodType    string             `json:"bloodType" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Medications  string             `json:"medications"`
	Allergies    string             `json:"allergies"`
	IsOrganDonor string             `json:"isOrganDonor" validate:"omitempty,oneof=Sim Não"`
	Message      string             `json:"message"`
	Contacts     []EmergencyContact `json:"contacts" validate:"max=5"`
	GroupLink    string             `json:"groupLink" validate:"omitempty,url"`
}

// ValidContacts returns the contacts with a usable phone number, in slot order
func (s *UserSettings) ValidContacts() []EmergencyContact {
	contacts := []EmergencyContact{}
	for _, contact := range s.Contacts {
		if contact.Valid() {
			contacts = append(contacts, contact)
		}
	}

	return contacts
}

// FindContact looks a contact up by its slot id
func (s *UserSettings) FindContact(id string) *EmergencyContact {
	for i := range s.Contacts {
		if s.Contacts[i].ID == id {
			return &s.Contacts[i]
		}
	}

	return nil
}

// HasRecipients reports whether a panic activation has anywhere to go
func (s *UserSettings) HasRecipients() bool {
	return len(s.ValidContacts()) > 0 || strings.TrimSpace(s.GroupLink) != ""
}

// Defaults returns the built-in first-run settings: empty profile, the
// default alert message & 5 empty contact slots with fresh ids.
func Defaults() *UserSettings {
	contacts := make([]EmergencyContact, 0, ContactSlots)
	for i := 0; i < ContactSlots; i++ {
		contacts = append(contacts, EmergencyContact{ID: uuid.NewString()})
	}

	return &UserSettings{
		Message:  DefaultAlertMessage,
		Contacts: contacts,
	}
}
