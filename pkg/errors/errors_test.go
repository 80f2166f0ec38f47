package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationErrorMessage(t *testing.T) {
	err := Newf(ErrVocabulary, "Value %s not found in vocabulary %s", "x", "tag")
	assert.Equal(t, "Value x not found in vocabulary tag", err.Error())
	assert.ErrorIs(t, err, ErrVocabulary)

	bare := &MigrationError{Err: ErrProvider}
	assert.Equal(t, "provider error", bare.Error())
}

func TestUnknownSourceIsVocabularyError(t *testing.T) {
	err := New(ErrUnknownSource, "unknown source ftp")
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.ErrorIs(t, err, ErrVocabulary)
	assert.True(t, IsConfiguration(err))
	assert.False(t, IsConfiguration(New(ErrVocabulary, "missing")))
}

func TestValueShapeIsRecordData(t *testing.T) {
	err := New(ErrValueShape, "field tags holds a mapping")
	assert.ErrorIs(t, err, ErrVocabulary)
	assert.False(t, IsConfiguration(err))
	assert.True(t, IsConfiguration(New(ErrDefinitionMismatch, "definition must be a mapping")))
}

func TestLossyCarriesMissingFields(t *testing.T) {
	err := fmt.Errorf("converting record: %w", Lossy("035__a", "999C5"))
	assert.ErrorIs(t, err, ErrLossyConversion)
	assert.Equal(t, []string{"035__a", "999C5"}, Missing(err))
	assert.Nil(t, Missing(errors.New("other")))
}
