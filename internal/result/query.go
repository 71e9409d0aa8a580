package result

// QueryResult is one page of a listing.
type QueryResult[T any] struct {
	Filter string `json:"filter"`
	Start  int    `json:"start"`
	Count  int    `json:"count"`
	Total  int    `json:"total"`
	Items  []T    `json:"items"`
}

// Paginate slices items into a page. A negative start or count returns every
// item with Start 0 and Count equal to the total.
func Paginate[T any](items []T, filter string, start, count int) QueryResult[T] {
	total := len(items)
	if start < 0 || count < 0 {
		return QueryResult[T]{
			Filter: filter,
			Start:  0,
			Count:  total,
			Total:  total,
			Items:  nonNil(items),
		}
	}

	lo := min(start, total)
	hi := total
	if count < total-lo {
		hi = lo + count
	}
	return QueryResult[T]{
		Filter: filter,
		Start:  start,
		Count:  hi - lo,
		Total:  total,
		Items:  nonNil(items[lo:hi]),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
