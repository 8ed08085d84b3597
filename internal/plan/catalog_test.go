package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webloom/entitled/internal/config"
)

func testCatalog() Catalog {
	return NewCatalog(config.NewStaticPlansConfigHolder(config.DefaultPlansConfig()))
}

func TestParse(t *testing.T) {
	p, err := Parse(" Pro ")
	assert.NoError(t, err)
	assert.Equal(t, Pro, p)

	_, err = Parse("platinum")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCompareOrder(t *testing.T) {
	assert.Equal(t, -1, Basic.Compare(Pro))
	assert.Equal(t, -1, Pro.Compare(Enterprise))
	assert.Equal(t, 1, Enterprise.Compare(Basic))
	assert.Equal(t, 0, Pro.Compare(Pro))
}

func TestLimitsFor(t *testing.T) {
	catalog := testCatalog()

	basic, err := catalog.LimitsFor(Basic)
	assert.NoError(t, err)
	assert.Equal(t, Limit(3), basic.Websites)
	assert.Equal(t, Limit(10), basic.Analyses)
	assert.False(t, basic.HasFeature(FeatureAnalyticsDashboard))

	pro, err := catalog.LimitsFor(Pro)
	assert.NoError(t, err)
	assert.Equal(t, Limit(25), pro.Websites)
	assert.True(t, pro.HasFeature(FeatureAnalyticsDashboard))
	assert.False(t, pro.HasFeature(FeatureTeamCollaboration))

	enterprise, err := catalog.LimitsFor(Enterprise)
	assert.NoError(t, err)
	assert.True(t, enterprise.Websites.IsUnlimited())
	assert.True(t, enterprise.Analyses.IsUnlimited())
	assert.True(t, enterprise.HasFeature(FeatureTeamCollaboration))

	_, err = catalog.LimitsFor(Plan("platinum"))
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestLimitAllows(t *testing.T) {
	assert.True(t, Limit(3).Allows(2))
	assert.False(t, Limit(3).Allows(3), "count equal to limit denies further allocation")
	assert.False(t, Limit(3).Allows(5), "counts above a downgraded limit stay denied")
	assert.True(t, Unlimited.Allows(1<<40))
}

func TestCheapestSatisfying(t *testing.T) {
	catalog := testCatalog()

	p, ok := catalog.CheapestSatisfying(func(l Limits) bool {
		return l.Websites.Allows(3)
	})
	assert.True(t, ok)
	assert.Equal(t, Pro, p)

	p, ok = catalog.CheapestSatisfying(func(l Limits) bool {
		return l.HasFeature(FeatureTeamCollaboration)
	})
	assert.True(t, ok)
	assert.Equal(t, Enterprise, p)

	_, ok = catalog.CheapestSatisfying(func(l Limits) bool { return false })
	assert.False(t, ok)
}
