package domain

// Batch is a single gateway call: tokens of one platform carrying one payload.
type Batch struct {
	RequestId string
	Platform  Platform
	Tokens    []Token
	Title     string
	Body      string
	Data      map[string]string
	Priority  Priority
}

func (b Batch) TokenIds() []string {
	ids := make([]string, len(b.Tokens))
	for i, t := range b.Tokens {
		ids[i] = t.Id
	}
	return ids
}
