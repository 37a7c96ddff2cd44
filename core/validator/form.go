package validator

// FormResult aggregates per-field validation outcomes for one form snapshot.
type FormResult struct {
	Valid bool

	// FirstInvalid names the first failing field in registration order,
	// for focus and scroll handling in the caller's UI layer.
	FirstInvalid string

	// Fields holds the per-field results for every validated field.
	Fields map[string]Result

	// Message is the aggregate user-facing message, empty when valid.
	Message string
}

// ValidateForm validates the listed required fields of a form snapshot, in
// the order given. Field kinds are derived from field names. The first
// invalid field is recorded for focus handling; validation still continues
// so every field gets a result.
func ValidateForm(fields map[string]string, required []string) FormResult {
	res := FormResult{
		Valid:  true,
		Fields: make(map[string]Result, len(required)),
	}

	for _, name := range required {
		fr := ValidateField(DetectKind(name), fields[name], true)
		res.Fields[name] = fr

		if !fr.Valid {
			res.Valid = false
			if res.FirstInvalid == "" {
				res.FirstInvalid = name
			}
		}
	}

	if !res.Valid {
		res.Message = MsgFormFixErrors
	}

	return res
}
