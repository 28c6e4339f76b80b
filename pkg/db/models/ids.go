package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it empty. Postgres has a
// gen_random_uuid() default too, but generating in Go keeps the id known before insert.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
