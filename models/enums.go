package models

// BusinessType is the legal form of the taxpayer. The type / fiscal regime /
// default VAT combination is a fixed mapping enforced at write time.
type BusinessType string

const (
	BusinessTypeCorporate        BusinessType = "Corporate"
	BusinessTypeIndividual       BusinessType = "Individual"
	BusinessTypeAutoEntrepreneur BusinessType = "AutoEntrepreneur"
)

func (t BusinessType) Valid() bool {
	switch t {
	case BusinessTypeCorporate, BusinessTypeIndividual, BusinessTypeAutoEntrepreneur:
		return true
	}
	return false
}

type FiscalRegime string

const (
	FiscalRegimeReal             FiscalRegime = "Real"
	FiscalRegimeFlatRate         FiscalRegime = "FlatRate"
	FiscalRegimeAutoEntrepreneur FiscalRegime = "AutoEntrepreneur"
)

func (r FiscalRegime) Valid() bool {
	switch r {
	case FiscalRegimeReal, FiscalRegimeFlatRate, FiscalRegimeAutoEntrepreneur:
		return true
	}
	return false
}

// MainActivity drives the IBS rate for corporate taxpayers.
type MainActivity string

const (
	MainActivityProduction   MainActivity = "Production"
	MainActivityConstruction MainActivity = "Construction"
	MainActivityTourism      MainActivity = "Tourism"
	MainActivityTrade        MainActivity = "Trade"
	MainActivityServices     MainActivity = "Services"
)

func (a MainActivity) Valid() bool {
	switch a {
	case MainActivityProduction, MainActivityConstruction, MainActivityTourism,
		MainActivityTrade, MainActivityServices:
		return true
	}
	return false
}

type InvoiceType string

const (
	InvoiceTypeInvoice      InvoiceType = "Invoice"
	InvoiceTypeQuote        InvoiceType = "Quote"
	InvoiceTypeCreditNote   InvoiceType = "CreditNote"
	InvoiceTypeProForma     InvoiceType = "ProForma"
	InvoiceTypeDeliveryNote InvoiceType = "DeliveryNote"
	InvoiceTypeSaleOrder    InvoiceType = "SaleOrder"
)

func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeInvoice, InvoiceTypeQuote, InvoiceTypeCreditNote,
		InvoiceTypeProForma, InvoiceTypeDeliveryNote, InvoiceTypeSaleOrder:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "Draft"
	InvoiceStatusIssued    InvoiceStatus = "Issued"
	InvoiceStatusPartial   InvoiceStatus = "Partial"
	InvoiceStatusPaid      InvoiceStatus = "Paid"
	InvoiceStatusOverdue   InvoiceStatus = "Overdue"
	InvoiceStatusCancelled InvoiceStatus = "Cancelled"
)

// IsTerminal reports whether the status forbids any further edit beyond
// cosmetic fields.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// ZeroRateReason buckets zero-rated turnover on the G50: export sales are
// reported separately from domestic exempt sales.
type ZeroRateReason string

const (
	ZeroRateReasonExport ZeroRateReason = "Export"
	ZeroRateReasonExempt ZeroRateReason = "Exempt"
)

// ItemKind splits turnover into goods vs services for the annual G12/IFU
// computation.
type ItemKind string

const (
	ItemKindGoods    ItemKind = "Goods"
	ItemKindServices ItemKind = "Services"
)

func (k ItemKind) Valid() bool {
	return k == ItemKindGoods || k == ItemKindServices
}

type DeclarationStatus string

const (
	// DeclarationStatusFinalized marks a legally filed, frozen snapshot.
	DeclarationStatusFinalized DeclarationStatus = "FINALIZED"
)

type ClosureType string

const (
	ClosureTypeMonthly ClosureType = "Monthly"
	ClosureTypeAnnual  ClosureType = "Annual"
	ClosureTypeCustom  ClosureType = "Custom"
)

// Outbox publish statuses for OutboxRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Webhook event types written to the outbox by primary mutations.
const (
	EventInvoiceCreated   = "invoice.created"
	EventInvoiceUpdated   = "invoice.updated"
	EventInvoiceDeleted   = "invoice.deleted"
	EventInvoiceIssued    = "invoice.issued"
	EventInvoiceCancelled = "invoice.cancelled"
	EventPaymentRecorded  = "invoice.payment_recorded"
	EventInvoiceUnpaid    = "invoice.marked_unpaid"
	EventPaymentReminder  = "invoice.payment_reminder"
	EventG50Finalized     = "g50.finalized"
)

// Reminder statuses for PaymentReminder.Status.
const (
	ReminderStatusPending = "Pending"
	ReminderStatusSent    = "Sent"
)
