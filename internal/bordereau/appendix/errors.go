package appendix

import "fmt"

// QuantityExceededError rejects an appendix-2 grouping that would attribute
// more than a sub-document's received quantity across its containers. State is
// left unchanged.
type QuantityExceededError struct {
	ReadableID string
	Requested  float64
	Remaining  float64
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf(
		"cannot group %g of bordereau %s: only %g remains available for grouping",
		e.Requested, e.ReadableID, e.Remaining,
	)
}
