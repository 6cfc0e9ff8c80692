package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/model"
)

func TestSchemaFor_KnownEntities(t *testing.T) {
	corp, err := schemaFor(model.EntityCorp)
	assert.NoError(t, err)
	assert.Equal(t, "corp", corp)

	sole, err := schemaFor(model.EntitySoleProp)
	assert.NoError(t, err)
	assert.Equal(t, "soleprop", sole)
}

func TestSchemaFor_UnknownEntityErrors(t *testing.T) {
	_, err := schemaFor(model.Entity("nonexistent"))
	assert.Error(t, err)
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "corp.receipts", qualify("corp", "receipts"))
}

func TestProjectionRefresher_RejectsUnknownEntity(t *testing.T) {
	p := NewProjectionRefresher(nil)
	err := p.Refresh(context.Background(), model.Entity("mars"))
	assert.Error(t, err)
}
