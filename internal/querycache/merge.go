package querycache

// Identified is a row with a stable identity.
type Identified interface {
	GetID() string
}

// Prepend puts rec first, as a freshly created row.
func Prepend[T any](rec T) func([]T) []T {
	return func(rows []T) []T {
		return append([]T{rec}, rows...)
	}
}

// Replace swaps the row sharing rec's identity for rec.
func Replace[T Identified](rec T) func([]T) []T {
	return func(rows []T) []T {
		for i := range rows {
			if rows[i].GetID() == rec.GetID() {
				rows[i] = rec
			}
		}
		return rows
	}
}

// Remove drops the row with id.
func Remove[T Identified](id string) func([]T) []T {
	return func(rows []T) []T {
		out := rows[:0]
		for _, r := range rows {
			if r.GetID() != id {
				out = append(out, r)
			}
		}
		return out
	}
}
