package models

// Processing operation codes that designate a grouping/transit step rather than
// a final treatment. A bordereau processed with one of these waits for an
// appendix-2 container (AWAITING_GROUP) instead of reaching PROCESSED.
var groupingOperationCodes = map[string]struct{}{
	"D 13": {},
	"D 14": {},
	"D 15": {},
	"R 12": {},
	"R 13": {},
}

// IsGroupingOperation reports whether an operation code belongs to the
// grouping code set.
func IsGroupingOperation(code string) bool {
	_, ok := groupingOperationCodes[code]
	return ok
}

// IsFinalOperation reports whether an operation code designates a final
// treatment. Empty codes are not final.
func IsFinalOperation(code string) bool {
	if code == "" {
		return false
	}
	return !IsGroupingOperation(code)
}
