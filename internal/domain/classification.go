package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusDone    Status = "Done"
	StatusNotDone Status = "Not Done"
	StatusUnknown Status = "Unknown"
)

// Statuses lists the recognised values in reporting order.
var Statuses = []Status{StatusDone, StatusNotDone, StatusUnknown}

func (s Status) Valid() bool {
	switch s {
	case StatusDone, StatusNotDone, StatusUnknown:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
	return st, nil
}

// Classification is the outcome of checking one record for one reporting period.
// Quantity is only set when Status is Done and a measured value was found.
type Classification struct {
	ID          string  `json:"CARDNO"`
	DisplayName string  `json:"HEAD OF THE FAMILY"`
	Status      Status  `json:"transaction_status"`
	Quantity    *string `json:"Avail.Commodity"`
}

func NewClassification(r Record, status Status, quantity string) Classification {
	c := Classification{ID: r.ID, DisplayName: r.DisplayName, Status: status}
	if status == StatusDone && quantity != "" {
		q := quantity
		c.Quantity = &q
	}
	return c
}

func (c Classification) QuantityString() string {
	if c.Quantity == nil {
		return ""
	}
	return *c.Quantity
}

// ResultSet is the ordered snapshot persisted after every run.
type ResultSet []Classification

// Index maps ids to their classification. Later duplicates do not override earlier ones.
func (rs ResultSet) Index() map[string]Classification {
	idx := make(map[string]Classification, len(rs))
	for _, c := range rs {
		if c.ID == "" {
			continue
		}
		if _, ok := idx[c.ID]; !ok {
			idx[c.ID] = c
		}
	}
	return idx
}

func (rs ResultSet) IDs() []string {
	ids := make([]string, 0, len(rs))
	for _, c := range rs {
		ids = append(ids, c.ID)
	}
	return ids
}

// Records converts the snapshot back into master records, for recheck-in-place runs.
func (rs ResultSet) Records() []Record {
	out := make([]Record, 0, len(rs))
	for _, c := range rs {
		out = append(out, Record{ID: c.ID, DisplayName: c.DisplayName})
	}
	return out
}

func (rs ResultSet) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, c := range rs {
		counts[c.Status]++
	}
	return counts
}

// Encode writes the snapshot as an indented JSON array without HTML escaping,
// so names in any script are stored as-is.
func (rs ResultSet) Encode() ([]byte, error) {
	if rs == nil {
		rs = ResultSet{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeResultSet(data []byte) (ResultSet, error) {
	var rs ResultSet
	if len(bytes.TrimSpace(data)) == 0 {
		return ResultSet{}, nil
	}
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	if rs == nil {
		rs = ResultSet{}
	}
	return rs, nil
}
