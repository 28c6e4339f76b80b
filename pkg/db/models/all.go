package models

// All lists every persisted model in dependency order. Used to auto-migrate
// SQLite databases in local mode and tests; Postgres goes through goose.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&Product{},
		&Item{},
		&Order{},
		&OrderLine{},
		&Payment{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
