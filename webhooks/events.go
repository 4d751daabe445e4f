package webhooks

const (
	EventChargeSuccess                 = "charge.success"
	EventChargeFailed                  = "charge.failed"
	EventTransferSuccess               = "transfer.success"
	EventTransferFailed                = "transfer.failed"
	EventTransferReversed              = "transfer.reversed"
	EventDedicatedAccountAssignSuccess = "dedicatedaccount.assign.success"
	EventDedicatedAccountAssignFailed  = "dedicatedaccount.assign.failed"
	EventCustomerIdentificationSuccess = "customeridentification.success"
	EventCustomerIdentificationFailed  = "customeridentification.failed"
	EventInvoiceCreate                 = "invoice.create"
	EventInvoicePaymentSuccess         = "invoice.payment_success"
	EventInvoicePaymentFailed          = "invoice.payment_failed"
	EventSubscriptionCreate            = "subscription.create"
	EventSubscriptionDisable           = "subscription.disable"
	EventSubscriptionNotRenew          = "subscription.not_renew"
	EventPaymentRequestSuccess         = "paymentrequest.success"
	EventPaymentRequestPending         = "paymentrequest.pending"

	// WildcardEvent matches every recognized event. Only generic handlers
	// may register for it.
	WildcardEvent = "*"
)

var recognizedEvents = []string{
	EventChargeSuccess,
	EventChargeFailed,
	EventTransferSuccess,
	EventTransferFailed,
	EventTransferReversed,
	EventDedicatedAccountAssignSuccess,
	EventDedicatedAccountAssignFailed,
	EventCustomerIdentificationSuccess,
	EventCustomerIdentificationFailed,
	EventInvoiceCreate,
	EventInvoicePaymentSuccess,
	EventInvoicePaymentFailed,
	EventSubscriptionCreate,
	EventSubscriptionDisable,
	EventSubscriptionNotRenew,
	EventPaymentRequestSuccess,
	EventPaymentRequestPending,
}

var recognizedEventSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(recognizedEvents))
	for _, event := range recognizedEvents {
		set[event] = struct{}{}
	}
	return set
}()

// Events returns the recognized event names.
func Events() []string {
	return append([]string(nil), recognizedEvents...)
}

// IsValidEvent reports whether eventType is one of the recognized events.
// Matching is exact.
func IsValidEvent(eventType string) bool {
	if eventType == "" {
		return false
	}
	_, ok := recognizedEventSet[eventType]
	return ok
}
