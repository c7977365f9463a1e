package models

import (
	"time"

	"github.com/google/uuid"
)

// Form is the bordereau aggregate root. Satellite records (transporters,
// groupement links, temporary-storage detail) are loaded on demand by the
// store's FindWithIncludes.
type Form struct {
	ID         uuid.UUID
	ReadableID string
	Status     Status
	// Version increments on every committed mutation; the store rejects
	// writes carrying a stale version so concurrent transitions on the same
	// document serialize instead of clobbering each other.
	Version int

	EmitterType            EmitterType
	IsDeleted              bool
	NoTraceability         bool
	RecipientIsTempStorage bool

	EmitterCompanySiret   string
	EmitterCompanyName    string
	RecipientCompanySiret string
	RecipientCompanyName  string
	RecipientCap          string
	TraderCompanySiret    string
	TraderCompanyName     string
	BrokerCompanySiret    string
	BrokerCompanyName     string
	EcoOrganismeSiret     string
	EcoOrganismeName      string
	IntermediarySirets    []string

	WasteDetailsCode         string
	WasteDetailsName         string
	WasteDetailsIsDangerous  bool
	WasteDetailsPop          bool
	WasteDetailsQuantity     *float64
	WasteDetailsPackagings   string
	QuantityReceived         *float64
	QuantityRefused          *float64
	WasteAcceptationStatus   WasteAcceptationStatus
	WasteRefusalReason       string
	ProcessingOperationDone  string
	ProcessingOperationDesc  string
	DestinationOperationMode *string

	NextDestinationCompanySiret        string
	NextDestinationProcessingOperation string

	SentAt      *time.Time
	ReceivedAt  *time.Time
	ReceivedBy  string
	SignedAt    *time.Time
	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Transporters are the ordered transport legs; leg 1 is the initial
	// pickup. A leg without TakenOverAt has not been picked up yet.
	Transporters []Transporter

	// TempStorage is the forwarded-in detail when RecipientIsTempStorage.
	TempStorage *TempStorageDetail
}

// Transporter is one transport leg on a bordereau.
type Transporter struct {
	ID           uuid.UUID
	FormID       uuid.UUID
	Number       int
	CompanySiret string
	CompanyName  string
	TakenOverAt  *time.Time
	TakenOverBy  string
}

// TempStorageDetail carries the temporary-storage reception and the final
// destination agreed when the recipient is a temp-storage site.
type TempStorageDetail struct {
	FormID                            uuid.UUID
	DestinationCompanySiret           string
	DestinationCap                    string
	DestinationProcessingOperation    string
	TemporaryStorerQuantityType       string
	TemporaryStorerQuantityReceived   *float64
	TemporaryStorerAcceptationStatus  WasteAcceptationStatus
	TemporaryStorerWasteRefusalReason string
	TemporaryStorerReceivedAt         *time.Time
	TemporaryStorerReceivedBy         string
}

// Groupement links an initial (sub-)bordereau to the container that aggregates
// it, carrying the fraction of the received quantity attributed to that
// container.
type Groupement struct {
	ID            uuid.UUID
	InitialFormID uuid.UUID
	NextFormID    uuid.UUID
	Quantity      float64
}

// FirstTransporter returns transport leg 1, or nil when no leg exists.
func (f *Form) FirstTransporter() *Transporter {
	for i := range f.Transporters {
		if f.Transporters[i].Number == 1 {
			return &f.Transporters[i]
		}
	}
	return nil
}

// HasSegmentsToTakeOver reports whether any transport leg still awaits pickup.
// Reception cannot be recorded while this holds.
func (f *Form) HasSegmentsToTakeOver() bool {
	for i := range f.Transporters {
		if f.Transporters[i].TakenOverAt == nil {
			return true
		}
	}
	return false
}

// PartySirets returns the denormalized set of organization identifiers with a
// role on the bordereau. The store keeps this set in sync on every write that
// could change a party.
func (f *Form) PartySirets() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	add := func(siret string) {
		if siret == "" {
			return
		}
		if _, ok := seen[siret]; ok {
			return
		}
		seen[siret] = struct{}{}
		out = append(out, siret)
	}
	add(f.EmitterCompanySiret)
	add(f.RecipientCompanySiret)
	add(f.TraderCompanySiret)
	add(f.BrokerCompanySiret)
	add(f.EcoOrganismeSiret)
	for i := range f.Transporters {
		add(f.Transporters[i].CompanySiret)
	}
	for _, siret := range f.IntermediarySirets {
		add(siret)
	}
	if f.TempStorage != nil {
		add(f.TempStorage.DestinationCompanySiret)
	}
	return out
}

// Clone returns a deep copy so guard evaluation and propagation planning can
// work on snapshots without aliasing store-owned state.
func (f *Form) Clone() *Form {
	cp := *f
	cp.IntermediarySirets = append([]string(nil), f.IntermediarySirets...)
	cp.Transporters = append([]Transporter(nil), f.Transporters...)
	if f.WasteDetailsQuantity != nil {
		v := *f.WasteDetailsQuantity
		cp.WasteDetailsQuantity = &v
	}
	if f.QuantityReceived != nil {
		v := *f.QuantityReceived
		cp.QuantityReceived = &v
	}
	if f.QuantityRefused != nil {
		v := *f.QuantityRefused
		cp.QuantityRefused = &v
	}
	if f.DestinationOperationMode != nil {
		v := *f.DestinationOperationMode
		cp.DestinationOperationMode = &v
	}
	if f.SentAt != nil {
		v := *f.SentAt
		cp.SentAt = &v
	}
	if f.ReceivedAt != nil {
		v := *f.ReceivedAt
		cp.ReceivedAt = &v
	}
	if f.SignedAt != nil {
		v := *f.SignedAt
		cp.SignedAt = &v
	}
	if f.ProcessedAt != nil {
		v := *f.ProcessedAt
		cp.ProcessedAt = &v
	}
	if f.TempStorage != nil {
		ts := *f.TempStorage
		if f.TempStorage.TemporaryStorerQuantityReceived != nil {
			q := *f.TempStorage.TemporaryStorerQuantityReceived
			ts.TemporaryStorerQuantityReceived = &q
		}
		if f.TempStorage.TemporaryStorerReceivedAt != nil {
			t := *f.TempStorage.TemporaryStorerReceivedAt
			ts.TemporaryStorerReceivedAt = &t
		}
		cp.TempStorage = &ts
	}
	return &cp
}
