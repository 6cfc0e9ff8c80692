package storage

import (
	"fmt"

	"github.com/rezonia/invoice-processor/internal/model"
)

// schemaFor resolves the entity-scoped Postgres schema a query should
// target. Entity is a closed two-value enum (validated at the model
// layer), so building a schema-qualified identifier from it directly
// is safe — it is never attacker-controlled free text.
func schemaFor(entity model.Entity) (string, error) {
	switch entity {
	case model.EntityCorp:
		return "corp", nil
	case model.EntitySoleProp:
		return "soleprop", nil
	default:
		return "", fmt.Errorf("unknown entity %q", entity)
	}
}

func qualify(schema, table string) string {
	return fmt.Sprintf("%s.%s", schema, table)
}
