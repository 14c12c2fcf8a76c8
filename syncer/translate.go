package syncer

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/books"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/config"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/fieldops"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/mapping"
)

// consolidationKey identifies line items that must merge into one: same
// Books item, same description (absent collapses to empty), same rate.
type consolidationKey struct {
	itemID      string
	description string
	rate        string
}

// Translate maps FieldOps line items into Books line items through the
// mapping table, then consolidates duplicates by key with summed
// quantities. Pure with respect to its inputs: all working state is local,
// nothing is carried between invoices. Output preserves first-appearance
// order of each key. Returns the translated items and how many source items
// were skipped (no mapping or unparsable numbers).
func Translate(items []fieldops.LineItem, table *mapping.Table) ([]books.LineItem, int) {
	logger := config.GetLogger()
	skipped := 0

	merged := make(map[consolidationKey]*books.LineItem, len(items))
	order := make([]consolidationKey, 0, len(items))

	for _, item := range items {
		m, err := table.Resolve(item.ProductID)
		if err != nil {
			config.LogError(logger, "syncer", "Translate", item.ProductID, item, err)
			skipped++
			continue
		}

		qty, err := decimalFromNumber(item.Quantity)
		if err != nil {
			config.LogError(logger, "syncer", "Translate", item.ProductID, item, err)
			skipped++
			continue
		}
		rate, err := decimalFromNumber(item.UnitPrice)
		if err != nil {
			config.LogError(logger, "syncer", "Translate", item.ProductID, item, err)
			skipped++
			continue
		}

		description := ""
		if m.IncludeDescription {
			description = item.Name
		}

		// Fixed-scale rendering so numerically equal rates ("50" vs
		// "50.00") land in the same group.
		key := consolidationKey{
			itemID:      m.TargetItemID,
			description: description,
			rate:        rate.StringFixed(4),
		}
		if existing, ok := merged[key]; ok {
			existing.Quantity = existing.Quantity.Add(qty)
			continue
		}
		merged[key] = &books.LineItem{
			ItemID:      m.TargetItemID,
			Quantity:    qty,
			Rate:        rate,
			Description: description,
		}
		order = append(order, key)
	}

	out := make([]books.LineItem, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out, skipped
}

func decimalFromNumber(num json.Number) (decimal.Decimal, error) {
	return decimal.NewFromString(num.String())
}
