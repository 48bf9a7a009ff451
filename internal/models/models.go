package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Course{},
		&User{},
		&Category{},
		&Asset{},
		&Comment{},
		&Like{},
		&Pin{},
		&Activity{},
		&ActivityTypeOverride{},
	}
}
