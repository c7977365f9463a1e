package workflow

import (
	"wastetrack/internal/bordereau/models"
)

// sealableFields returns every field that blocks sealing. The list is surfaced
// whole so the caller can fix the form in one pass.
func sealableFields(f *models.Form) []string {
	var missing []string

	if f.EmitterCompanySiret == "" {
		missing = append(missing, "emitterCompanySiret")
	}
	if f.RecipientCompanySiret == "" {
		missing = append(missing, "recipientCompanySiret")
	}
	if f.WasteDetailsCode == "" {
		missing = append(missing, "wasteDetailsCode")
	}
	if f.WasteDetailsQuantity == nil || *f.WasteDetailsQuantity <= 0 {
		missing = append(missing, "wasteDetailsQuantity")
	}
	if f.WasteDetailsPackagings == "" {
		missing = append(missing, "wasteDetailsPackagingInfos")
	}

	// Appendix-1 children inherit their transporter from the container, so
	// the leg requirement only binds ordinary bordereaux and containers.
	if f.EmitterType != models.EmitterTypeAppendix1Producer && f.FirstTransporter() == nil {
		missing = append(missing, "transporter")
	}

	if f.RecipientIsTempStorage {
		if f.TempStorage == nil || f.TempStorage.DestinationCompanySiret == "" {
			missing = append(missing, "temporaryStorageDetail.destinationCompanySiret")
		}
	}

	return missing
}

// resealableFields validates the destination frames filled at the
// temp-storage site before re-shipment.
func resealableFields(f *models.Form) []string {
	var missing []string

	if f.TempStorage == nil {
		return []string{"temporaryStorageDetail"}
	}
	if f.TempStorage.DestinationCompanySiret == "" {
		missing = append(missing, "temporaryStorageDetail.destinationCompanySiret")
	}
	if f.TempStorage.DestinationProcessingOperation == "" {
		missing = append(missing, "temporaryStorageDetail.destinationProcessingOperation")
	}
	if f.TempStorage.TemporaryStorerQuantityReceived == nil {
		missing = append(missing, "temporaryStorageDetail.temporaryStorerQuantityReceived")
	}

	return missing
}
