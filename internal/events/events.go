package events

// Billing event types published to the outbox. The notifier drains these
// best-effort; billing never depends on delivery.
const (
	EventInvoiceGenerated = "invoice.generated"
	EventPaymentReceived  = "payment.received"
	EventBillPaid         = "bill.paid"
	EventBillOverdue      = "bill.overdue"
	EventPenaltyApplied   = "penalty.applied"
)
