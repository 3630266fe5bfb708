package closure

import (
	"errors"
	"testing"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/tidwall/assert"
)

func candidate() *feature.Collection {
	return feature.NewCollection([]*feature.Feature{
		feature.NewMultiLineString([]feature.Line{
			{{0, 0}, {1, 1}},
			{{2, 2}, {3, 3}},
		}, feature.Properties{"name": "part-a"}),
		feature.NewLineString(feature.Line{{4, 4}, {5, 5}}, feature.Properties{"name": "part-b"}),
	})
}

func TestParseStatus(t *testing.T) {
	expect := map[string]Status{
		"CLOSED_STORM":         ClosedStorm,
		"closed_temp":          ClosedTemp,
		"Alert":                Alert,
		"closed: storm damage": ClosedStorm,
		" closed: temporary ":  ClosedTemp,
		"":                     Unknown,
		"flooded":              Unknown,
	}
	for in, want := range expect {
		assert.Assert(ParseStatus(in) == want)
	}
	assert.Assert(ClosedStorm.Code() == "CLOSED_STORM")
	assert.Assert(Alert.String() == "alert")
	assert.Assert(Status(42).Code() == "UNKNOWN")
	assert.Assert(Status(-1).Color() == Unknown.Color())
	assert.Assert(len(Statuses()) == 3)
}

func TestValidate(t *testing.T) {
	ok := []Attributes{
		{},
		{StartDate: "2024-06-01"},
		{EndDate: "2024-06-01"},
		{StartDate: "2024-06-01", EndDate: "2024-06-10"},
		{StartDate: "2024-06-01", EndDate: "2024-06-01"},
	}
	for _, a := range ok {
		assert.Assert(a.Validate() == nil)
	}
	err := Attributes{StartDate: "2024-06-10", EndDate: "2024-06-01"}.Validate()
	assert.Assert(errors.Is(err, ErrDateRange))
	assert.Assert(err.Error() == "start date must be on or before end date")
	err = Attributes{StartDate: "06/01/2024"}.Validate()
	assert.Assert(errors.Is(err, ErrInvalidDate))
	err = Attributes{EndDate: "2024-02-30"}.Validate()
	assert.Assert(errors.Is(err, ErrInvalidDate))
}

func TestAssignRejectsBadRange(t *testing.T) {
	c := candidate()
	err := Assign(c, Attributes{
		Title:     "Bridge out",
		Status:    "CLOSED_STORM",
		StartDate: "2024-06-10",
		EndDate:   "2024-06-01",
	})
	assert.Assert(errors.Is(err, ErrDateRange))
	assert.Assert(len(c.Features[0].Properties) == 1)
	assert.Assert(c.Features[0].Properties["name"] == "part-a")
	assert.Assert(c.Features[1].Properties["name"] == "part-b")
}

func TestAssignOverwritesEveryPart(t *testing.T) {
	c := candidate()
	err := Assign(c, Attributes{
		Title:       "Bridge out",
		Status:      "closed: storm damage",
		Description: "Washout near mile 3",
		StartDate:   "2024-06-01",
		EndDate:     "2024-06-10",
	})
	assert.Assert(err == nil)
	for _, f := range c.Features {
		assert.Assert(len(f.Properties) == 5)
		_, ok := f.Properties["name"]
		assert.Assert(!ok)
		assert.Assert(f.Properties[KeyTitle] == "Bridge out")
		assert.Assert(f.Properties[KeyStatus] == "CLOSED_STORM")
		assert.Assert(f.Properties[KeyDescription] == "Washout near mile 3")
		assert.Assert(f.Properties[KeyStartDate] == "2024-06-01")
		assert.Assert(f.Properties[KeyEndDate] == "2024-06-10")
	}
	// parts do not share a map
	c.Features[0].Properties[KeyTitle] = "changed"
	assert.Assert(c.Features[1].Properties[KeyTitle] == "Bridge out")
}

func TestAssignNoCandidate(t *testing.T) {
	assert.Assert(errors.Is(Assign(nil, Attributes{}), ErrNoCandidate))
	assert.Assert(errors.Is(Assign(&feature.Collection{}, Attributes{}), ErrNoCandidate))
}

func TestSummary(t *testing.T) {
	items := Summary(feature.Properties{
		KeyTitle:     "Bridge out",
		KeyStatus:    "CLOSED_TEMP",
		KeyStartDate: float64(1717200000000), // 2024-06-01T00:00:00Z
		KeyEndDate:   nil,
	})
	assert.Assert(len(items) == 3)
	assert.Assert(items[0] == Item{"Title", "Bridge out"})
	assert.Assert(items[1] == Item{"Status", "closed: temporary"})
	assert.Assert(items[2] == Item{"Start Date", "2024-06-01"})

	items = Summary(feature.Properties{
		KeyStartDate:   "2024-06-01",
		KeyEndDate:     "1717977600000",
		KeyDescription: "detour via Lake Johnson",
	})
	assert.Assert(len(items) == 3)
	assert.Assert(items[1] == Item{"End Date (estimated)", "2024-06-10"})
	assert.Assert(items[2].Label == "Description")

	assert.Assert(len(Summary(nil)) == 0)
	assert.Assert(len(Summary(feature.Properties{KeyStartDate: float64(0)})) == 0)
}

func TestEpochMillis(t *testing.T) {
	ms, ok, err := EpochMillis("2024-06-01")
	assert.Assert(err == nil && ok && ms == 1717200000000)
	_, ok, err = EpochMillis("")
	assert.Assert(err == nil && !ok)
	_, _, err = EpochMillis("tomorrow")
	assert.Assert(errors.Is(err, ErrInvalidDate))
}
