package domain

import "encoding/json"

// DefaultDisplayName is used when a master list entry has no head-of-family name.
const DefaultDisplayName = "Unknown"

type Record struct {
	ID          string
	DisplayName string
}

type recordJSON struct {
	ID          string  `json:"CARDNO"`
	DisplayName *string `json:"HEAD OF THE FAMILY"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.DisplayName = DefaultDisplayName
	if raw.DisplayName != nil {
		r.DisplayName = *raw.DisplayName
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	name := r.DisplayName
	return json.Marshal(recordJSON{ID: r.ID, DisplayName: &name})
}
