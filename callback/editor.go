package callback

import "sort"

// Editor applies placeholder transformations to callback records. Tokens
// are validated against the vocabulary before any record is touched, so a
// rejected token never leaves a batch half-applied.
type Editor struct {
	vocab Vocabulary
}

func NewEditor(vocab Vocabulary) *Editor {
	return &Editor{vocab: vocab}
}

// Add inserts the tokens into every selected record's URL template and
// placeholder list. A nil selection means every record. Records are treated
// as values; the input slice is never modified. Returns the new records and
// the number of records that changed.
func (e *Editor) Add(records []Record, selected []Identity, tokens ...string) ([]Record, int, error) {
	return e.apply(records, selected, tokens, addPlaceholder)
}

// Remove deletes the tokens from every selected record's URL template and
// placeholder list, with the same batch semantics as Add.
func (e *Editor) Remove(records []Record, selected []Identity, tokens ...string) ([]Record, int, error) {
	return e.apply(records, selected, tokens, removePlaceholder)
}

func (e *Editor) apply(records []Record, selected []Identity, tokens []string, op func(Record, string) Record) ([]Record, int, error) {
	if err := e.vocab.Validate(tokens...); err != nil {
		return nil, 0, err
	}
	set := identitySet(selected)
	out := make([]Record, len(records))
	changed := 0
	for i, r := range records {
		out[i] = r
		if set != nil {
			if _, ok := set[r.Identity()]; !ok {
				continue
			}
		}
		edited := r
		for _, token := range tokens {
			edited = op(edited, token)
		}
		if edited.URL != r.URL || len(edited.Placeholders) != len(r.Placeholders) {
			out[i] = edited
			changed++
		}
	}
	return out, changed, nil
}

func identitySet(ids []Identity) map[Identity]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[Identity]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func addPlaceholder(r Record, token string) Record {
	r.URL = AddTemplatePlaceholder(r.URL, token)
	r.Placeholders = insertName(r.Placeholders, token)
	return r
}

func removePlaceholder(r Record, token string) Record {
	r.URL = RemoveTemplatePlaceholder(r.URL, token)
	r.Placeholders = deleteName(r.Placeholders, token)
	return r
}

// insertName adds name to a sorted name list, keeping it sorted. No-op if
// already present.
func insertName(names []string, name string) []string {
	at := sort.SearchStrings(names, name)
	if at < len(names) && names[at] == name {
		return names
	}
	out := make([]string, 0, len(names)+1)
	out = append(out, names[:at]...)
	out = append(out, name)
	out = append(out, names[at:]...)
	return out
}

func deleteName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			if len(names) == 1 {
				return nil
			}
			out := make([]string, 0, len(names)-1)
			out = append(out, names[:i]...)
			out = append(out, names[i+1:]...)
			return out
		}
	}
	return names
}
