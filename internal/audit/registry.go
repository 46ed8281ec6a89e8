package audit

// Entity type tags used to reference audited rows. The audit table keeps a
// soft reference (entity_type, entity_id) instead of foreign keys so rows
// survive even if the referenced entity is ever removed.
const (
	EntityRentalContract = "rental_contract"
	EntityBill           = "bill"
	EntityPayment        = "payment"
	EntityPaymentWebhook = "payment_webhook"
	EntityUnit           = "unit"
	EntityHousehold      = "household"
)

var knownEntities = map[string]struct{}{
	EntityRentalContract: {},
	EntityBill:           {},
	EntityPayment:        {},
	EntityPaymentWebhook: {},
	EntityUnit:           {},
	EntityHousehold:      {},
}

// IsKnownEntity reports whether the tag belongs to the audited entity set.
func IsKnownEntity(entityType string) bool {
	_, ok := knownEntities[entityType]
	return ok
}
