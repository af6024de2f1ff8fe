package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

// DefaultOrder sorts entries without a usable order to the end.
const DefaultOrder = 999

// Product metadata keys read by the shaper.
const (
	MetaOrder            = "order"
	MetaPlanTier         = "plan_tier"
	MetaIncludesPayroll  = "includes_payroll"
	MetaEmployeeRange    = "employee_range"
	MetaEntityRange      = "entity_range"
	MetaIsHoldingCompany = "is_holding_company"
	MetaFeatures         = "features"
	MetaHighlighted      = "highlighted"
)

// PriceSlot is a displayable price in major currency units.
type PriceSlot struct {
	PriceID  *string `json:"priceId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// TierGroup pairs the HR-only and HR+Payroll product of one plan tier.
type TierGroup struct {
	Tier          string     `json:"tier"`
	EmployeeRange string     `json:"employeeRange"`
	EntityRange   string     `json:"entityRange"`
	HROnly        *PriceSlot `json:"hrOnly"`
	HRPayroll     *PriceSlot `json:"hrPayroll"`
	Order         int        `json:"order"`
}

// TieredPricing is the grouped payload of the tiered mode.
type TieredPricing struct {
	SingleCompanies  []TierGroup `json:"singleCompanies"`
	HoldingCompanies []TierGroup `json:"holdingCompanies"`
}

// IntervalPrice is a recurring price of the plans mode.
type IntervalPrice struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type PlanPrices struct {
	Monthly *IntervalPrice `json:"monthly"`
	Annual  *IntervalPrice `json:"annual"`
}

// PlanProduct is one product of the plans mode.
type PlanProduct struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Features    []any      `json:"features"`
	Highlighted bool       `json:"highlighted"`
	Order       int        `json:"order"`
	Prices      PlanPrices `json:"prices"`
}

// TierEntry is the flattened view of an entry used for grouping.
type TierEntry struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	PriceID          *string `json:"priceId"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	PlanTier         string  `json:"planTier"`
	IncludesPayroll  bool    `json:"includesPayroll"`
	EmployeeRange    string  `json:"employeeRange"`
	EntityRange      string  `json:"entityRange"`
	IsHoldingCompany bool    `json:"isHoldingCompany"`
	Order            int     `json:"order"`
}

// Flatten uses the first active price of each entry. Entries without a price
// get a nil price id, amount 0 and the fallback currency.
func Flatten(entries []Entry, fallbackCurrency string) []TierEntry {
	out := make([]TierEntry, 0, len(entries))
	for _, e := range entries {
		md := e.Product.Metadata
		te := TierEntry{
			ID:               e.Product.ID,
			Name:             e.Product.Name,
			Currency:         fallbackCurrency,
			PlanTier:         md[MetaPlanTier],
			IncludesPayroll:  metaBool(md, MetaIncludesPayroll),
			EmployeeRange:    md[MetaEmployeeRange],
			EntityRange:      md[MetaEntityRange],
			IsHoldingCompany: metaBool(md, MetaIsHoldingCompany),
			Order:            Order(md),
		}
		if len(e.Prices) > 0 && e.Prices[0] != nil {
			p := e.Prices[0]
			id := p.ID
			te.PriceID = &id
			te.Amount = majorUnits(p.UnitAmount)
			if p.Currency != "" {
				te.Currency = string(p.Currency)
			}
		}
		out = append(out, te)
	}
	return out
}

// Tiered splits entries into single and holding companies and groups each
// side by plan tier. Both the entries and the groups are stably sorted by order.
func Tiered(entries []Entry, fallbackCurrency string) TieredPricing {
	var single, holding []TierEntry
	for _, te := range Flatten(entries, fallbackCurrency) {
		if te.IsHoldingCompany {
			holding = append(holding, te)
		} else {
			single = append(single, te)
		}
	}
	return TieredPricing{
		SingleCompanies:  groupByTier(single),
		HoldingCompanies: groupByTier(holding),
	}
}

func groupByTier(entries []TierEntry) []TierGroup {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })

	groups := make([]TierGroup, 0)
	index := make(map[string]int)
	for _, te := range entries {
		i, ok := index[te.PlanTier]
		if !ok {
			i = len(groups)
			index[te.PlanTier] = i
			groups = append(groups, TierGroup{
				Tier:          te.PlanTier,
				EmployeeRange: te.EmployeeRange,
				EntityRange:   te.EntityRange,
				Order:         te.Order,
			})
		}
		slot := &PriceSlot{PriceID: te.PriceID, Amount: te.Amount, Currency: te.Currency}
		if te.IncludesPayroll {
			groups[i].HRPayroll = slot
		} else {
			groups[i].HROnly = slot
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Order < groups[j].Order })
	return groups
}

// Plans maps entries to products with monthly and annual prices, stably
// sorted by order. The last active price of an interval wins.
func Plans(entries []Entry) []PlanProduct {
	out := make([]PlanProduct, 0, len(entries))
	for _, e := range entries {
		md := e.Product.Metadata
		pp := PlanProduct{
			ID:          e.Product.ID,
			Name:        e.Product.Name,
			Description: e.Product.Description,
			Features:    Features(md),
			Highlighted: metaBool(md, MetaHighlighted),
			Order:       Order(md),
		}
		for _, p := range e.Prices {
			if p == nil || p.Recurring == nil {
				continue
			}
			ip := &IntervalPrice{ID: p.ID, Amount: majorUnits(p.UnitAmount), Currency: string(p.Currency)}
			switch p.Recurring.Interval {
			case stripe.PriceRecurringIntervalMonth:
				pp.Prices.Monthly = ip
			case stripe.PriceRecurringIntervalYear:
				pp.Prices.Annual = ip
			}
		}
		out = append(out, pp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Order reads the order metadata. Missing or malformed values yield DefaultOrder.
func Order(md map[string]string) int {
	raw := strings.TrimSpace(md[MetaOrder])
	if raw == "" {
		return DefaultOrder
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultOrder
	}
	return n
}

// Features decodes the JSON encoded feature list. Anything but a JSON array
// yields an empty list.
func Features(md map[string]string) []any {
	raw := md[MetaFeatures]
	if raw == "" {
		return []any{}
	}
	var features []any
	if err := json.Unmarshal([]byte(raw), &features); err != nil || features == nil {
		return []any{}
	}
	return features
}

func metaBool(md map[string]string, key string) bool {
	return md[key] == "true"
}

func majorUnits(minor int64) float64 {
	return float64(minor) / 100
}
