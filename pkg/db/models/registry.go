package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&DirectoryShop{},
		&DirectorySupplier{},
		&DirectoryProduct{},
		&Pool{},
		&PoolParticipation{},
		&AggregatedPurchaseOrder{},
		&DeliveryRun{},
		&DeliveryStop{},
		&DeliveryProof{},
		&SequenceCounter{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
