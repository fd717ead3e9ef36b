package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertAndFindRecord(t *testing.T) {
	InitializeTestDb()

	err := UpsertRecord("some_key_v1", `{"a":1}`)
	assert.Nil(t, err)

	record, err := FindRecord("some_key_v1")
	assert.Nil(t, err)
	assert.Equal(t, `{"a":1}`, record.Payload)

	// Records are overwritten wholesale
	err = UpsertRecord("some_key_v1", `{"a":2}`)
	assert.Nil(t, err)

	record, err = FindRecord("some_key_v1")
	assert.Nil(t, err)
	assert.Equal(t, `{"a":2}`, record.Payload)
}

func TestFindMissingRecord(t *testing.T) {
	InitializeTestDb()

	_, err := FindRecord("no_such_key")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteRecord(t *testing.T) {
	InitializeTestDb()

	err := UpsertRecord("some_key_v1", `{}`)
	assert.Nil(t, err)

	err = DeleteRecord("some_key_v1")
	assert.Nil(t, err)

	_, err = FindRecord("some_key_v1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// Deleting a missing record is not an error
	err = DeleteRecord("some_key_v1")
	assert.Nil(t, err)
}
