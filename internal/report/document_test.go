package report

import (
	"encoding/json"
	"testing"

	"costmanager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_WireShape(t *testing.T) {
	costs := core.NewGroupedCosts()
	costs[core.Food] = []core.ReportItem{{Day: 15, Description: "Unit Test Item", Sum: 25}}
	doc := NewDocument(core.MonthlyReport{UserID: 123123, Year: 2050, Month: 2, Costs: costs})

	body, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"userid": 123123,
		"year": 2050,
		"month": 2,
		"costs": [
			{"food": [{"day": 15, "description": "Unit Test Item", "sum": 25}]},
			{"health": []},
			{"housing": []},
			{"sports": []},
			{"education": []}
		]
	}`, string(body))
}

func TestNewDocument_NilBucketsBecomeEmpty(t *testing.T) {
	doc := NewDocument(core.MonthlyReport{UserID: 1, Year: 2025, Month: 1, Costs: core.GroupedCosts{}})
	require.Len(t, doc.Costs, len(core.Categories))
	for i, c := range core.Categories {
		items, ok := doc.Costs[i][c]
		assert.True(t, ok, "position %d should hold %s", i, c)
		assert.NotNil(t, items)
	}
	assert.Empty(t, doc.Bucket(core.Sports))
	assert.Nil(t, doc.Bucket("travel"))
}
