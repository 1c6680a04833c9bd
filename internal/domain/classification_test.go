package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDefaultsDisplayName(t *testing.T) {
	var recs []Record
	err := json.Unmarshal([]byte(`[{"CARDNO":"R1","HEAD OF THE FAMILY":"Lakshmi"},{"CARDNO":"R2"}]`), &recs)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Lakshmi", recs[0].DisplayName)
	assert.Equal(t, DefaultDisplayName, recs[1].DisplayName)
}

func TestNewClassificationDropsQuantityUnlessDone(t *testing.T) {
	r := Record{ID: "R1", DisplayName: "A"}

	done := NewClassification(r, StatusDone, "10.000")
	require.NotNil(t, done.Quantity)
	assert.Equal(t, "10.000", *done.Quantity)

	notDone := NewClassification(r, StatusNotDone, "10.000")
	assert.Nil(t, notDone.Quantity)

	doneNoQty := NewClassification(r, StatusDone, "")
	assert.Nil(t, doneNoQty.Quantity)
}

func TestResultSetEncodePreservesNonASCIIAndNullQuantity(t *testing.T) {
	rs := ResultSet{
		NewClassification(Record{ID: "R1", DisplayName: "సీతా <&>"}, StatusDone, "5.000"),
		NewClassification(Record{ID: "R2", DisplayName: "B"}, StatusUnknown, ""),
	}
	data, err := rs.Encode()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "సీతా <&>")
	assert.Contains(t, s, `"Avail.Commodity": null`)
	assert.Contains(t, s, "\n    {\n        \"CARDNO\": \"R1\"")

	back, err := DecodeResultSet(data)
	require.NoError(t, err)
	assert.Equal(t, rs, back)
}

func TestDecodeResultSetEmpty(t *testing.T) {
	rs, err := DecodeResultSet([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rs)

	_, err = DecodeResultSet([]byte("{not json"))
	assert.Error(t, err)
}

func TestResultSetIndexKeepsFirstDuplicate(t *testing.T) {
	rs := ResultSet{
		{ID: "A", Status: StatusDone},
		{ID: "", Status: StatusNotDone},
		{ID: "A", Status: StatusUnknown},
	}
	idx := rs.Index()
	assert.Len(t, idx, 1)
	assert.Equal(t, StatusDone, idx["A"].Status)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Not Done")
	require.NoError(t, err)
	assert.Equal(t, StatusNotDone, st)

	_, err = ParseStatus("done")
	assert.Error(t, err)
}

func TestReportingPeriod(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on Oct 31 is already November in IST.
	p := CurrentPeriod(time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC), ist)
	assert.Equal(t, time.November, p.Month)
	assert.Equal(t, "november", p.Full())
	assert.Equal(t, "nov", p.Abbrev())

	assert.True(t, p.Matches("Transaction Details for NOVEMBER 2025"))
	assert.True(t, p.Matches("15-Nov-2025"))
	assert.False(t, p.Matches("October 2025"))

	parsed, err := ParsePeriod(" Oct ")
	require.NoError(t, err)
	assert.Equal(t, time.October, parsed.Month)

	_, err = ParsePeriod("Octember")
	assert.Error(t, err)

	assert.False(t, ReportingPeriod{}.Matches("anything"))
}
