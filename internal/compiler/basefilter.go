package compiler

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// Dimensions the tenant scope filters on.
const (
	AppIDDimension    = "appID"
	TestModeDimension = "isTestMode"
)

func basePolicy(q *query.CustomQuery) query.BaseFilters {
	if q.BaseFilters == nil {
		return query.BaseFiltersThisOrganization
	}
	return *q.BaseFilters
}

// baseFilter returns the tenant scope for policy. A nil filter means no
// restriction.
//
//	thisOrganization  appID in organizationAppIDs AND isTestMode
//	thisApp           appID == q.AppID AND isTestMode
//	exampleData       appID == ExampleDataAppID AND isTestMode
//	noFilter          nothing, super organizations only
func (c *Compiler) baseFilter(policy query.BaseFilters, q *query.CustomQuery, organizationAppIDs []uuid.UUID, isSuperOrg bool) (queryir.Filter, error) {
	switch policy {
	case query.BaseFiltersThisOrganization:
		if len(organizationAppIDs) == 0 {
			return nil, qerr.KeyMissing("organizationAppIDs", "thisOrganization needs the organization's app IDs")
		}
		return queryir.AllOf(AppIDFilter(organizationAppIDs...), TestModeFilter(q.TestMode)), nil
	case query.BaseFiltersThisApp:
		if q.AppID == nil {
			return nil, qerr.KeyMissing("appID", "thisApp needs an appID")
		}
		return queryir.AllOf(AppIDFilter(*q.AppID), TestModeFilter(q.TestMode)), nil
	case query.BaseFiltersExampleData:
		return queryir.AllOf(AppIDFilter(c.cfg.ExampleDataAppID), TestModeFilter(q.TestMode)), nil
	case query.BaseFiltersNoFilter:
		if !isSuperOrg {
			return nil, qerr.NotAllowed("noFilter is reserved for super organizations")
		}
		return nil, nil
	default:
		return nil, qerr.NotImplemented("base filter policy %q", policy)
	}
}

// AppIDFilter matches rows of any of ids. A single ID is a plain selector.
// IDs are written upper case, the form the ingestion side stores.
func AppIDFilter(ids ...uuid.UUID) queryir.Filter {
	selectors := make([]queryir.Filter, 0, len(ids))
	for _, id := range ids {
		selectors = append(selectors, &queryir.Selector{
			Dimension: AppIDDimension,
			Value:     strings.ToUpper(id.String()),
		})
	}
	return queryir.AnyOf(selectors...)
}

// TestModeFilter matches rows whose test mode flag equals testMode, false
// when unset.
func TestModeFilter(testMode *bool) queryir.Filter {
	value := false
	if testMode != nil {
		value = *testMode
	}
	return &queryir.Selector{Dimension: TestModeDimension, Value: strconv.FormatBool(value)}
}
