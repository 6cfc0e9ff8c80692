// Package categorize implements the second stage of line
// categorization, the deterministic Account Mapper, which turns a
// taxonomy category into a GL account. The first stage, the LLM-backed
// Item Recognizer that assigns the category, lives in internal/llm.
package categorize

import (
	"github.com/shopspring/decimal"
)

const (
	fallbackAccountCode = "9100"
	fallbackAccountName = "Pending Receipt - No ITC"

	equipmentAssetAccountCode = "1500"
	equipmentAssetAccountName = "Fixed Assets - Equipment"
	equipmentRepairAccountCode = "6300"
	equipmentRepairAccountName = "Repair & Maintenance"

	stage1ConfidenceFloor = 0.80
)

var capitalizationThreshold = decimal.RequireFromString("2500.00")

// accountEntry is one row of the closed taxonomy -> chart-of-accounts
// relation.
type accountEntry struct {
	code string
	name string
}

// accountTable is the closed mapping from taxonomy category to GL
// account. Categories absent from this table fall back to 9100 and
// force review. "equipment" is deliberately absent: it is handled by
// the capitalization rule instead of a static lookup.
var accountTable = map[string]accountEntry{
	"food_produce":          {"5001", "COGS - Produce"},
	"food_meat":             {"5002", "COGS - Meat"},
	"food_dairy":            {"5003", "COGS - Dairy"},
	"food_bakery":           {"5004", "COGS - Bakery"},
	"food_frozen":           {"5005", "COGS - Frozen"},
	"food_dry_goods":        {"5006", "COGS - Dry Goods"},
	"food_canned":           {"5007", "COGS - Canned Goods"},
	"food_snack":            {"5008", "COGS - Snacks"},
	"food_condiment":        {"5009", "COGS - Condiments"},
	"food_other":            {"5010", "COGS - Food Other"},
	"beverage_soda":         {"5011", "COGS - Soda"},
	"beverage_juice":        {"5012", "COGS - Juice"},
	"beverage_water":        {"5013", "COGS - Water"},
	"beverage_coffee_tea":   {"5014", "COGS - Coffee & Tea"},
	"beverage_alcohol":      {"5015", "COGS - Alcohol"},
	"beverage_other":        {"5016", "COGS - Beverage Other"},
	"supplement_vitamin":    {"5020", "COGS - Vitamins"},
	"supplement_protein":    {"5021", "COGS - Protein Supplements"},
	"supplement_herbal":     {"5022", "COGS - Herbal Supplements"},
	"supplement_other":      {"5023", "COGS - Supplement Other"},
	"retail_cleaning":       {"5101", "COGS - Cleaning Supplies"},
	"retail_paper":          {"5102", "COGS - Paper Products"},
	"retail_health_beauty":  {"5103", "COGS - Health & Beauty"},
	"retail_pet":            {"5104", "COGS - Pet Supplies"},
	"retail_clothing":       {"5105", "COGS - Clothing"},
	"retail_electronics":    {"5106", "COGS - Electronics"},
	"retail_hardware":       {"5107", "COGS - Hardware"},
	"retail_other":          {"5108", "COGS - Retail Other"},
	"packaging_container":   {"5201", "COGS - Packaging Containers"},
	"packaging_bag":         {"5202", "COGS - Packaging Bags"},
	"packaging_label":       {"5203", "COGS - Packaging Labels"},
	"packaging_other":       {"5204", "COGS - Packaging Other"},
	"freight":               {"5300", "Freight & Shipping"},
	"office_supply":         {"6100", "Office Supplies"},
	"repair_vehicle":        {"6301", "Repair & Maintenance - Vehicle"},
	"repair_equipment":      {equipmentRepairAccountCode, equipmentRepairAccountName},
	"repair_building":       {"6302", "Repair & Maintenance - Building"},
	"deposit":               {"1300", "Deposits Receivable"},
	"license":               {"6400", "Licenses & Permits"},
}

// Mapping is the Account Mapper's output.
type Mapping struct {
	AccountCode    string
	AccountName    string
	Confidence     float64
	RequiresReview bool
	Rule           string
}

// Map applies the deterministic (category, line_total) -> account
// function with the standard $2500 capitalization threshold.
// stage1Confidence is the Item Recognizer's confidence; the overall
// requires_review flag is set when either stage requires review or
// stage1 confidence falls below 0.80.
func Map(category string, lineTotal decimal.Decimal, stage1Confidence float64) Mapping {
	return MapWithThreshold(category, lineTotal, stage1Confidence, capitalizationThreshold)
}

// MapWithThreshold is Map with an operator-configured capitalization
// threshold. Same inputs always produce the same output.
func MapWithThreshold(category string, lineTotal decimal.Decimal, stage1Confidence float64, threshold decimal.Decimal) Mapping {
	var m Mapping

	switch {
	case category == "equipment":
		m = mapEquipment(lineTotal, threshold)
	default:
		if entry, ok := accountTable[category]; ok {
			m = Mapping{AccountCode: entry.code, AccountName: entry.name, Confidence: 1.0, Rule: "taxonomy_table"}
		} else {
			m = Mapping{
				AccountCode:    fallbackAccountCode,
				AccountName:    fallbackAccountName,
				Confidence:     0,
				RequiresReview: true,
				Rule:           "unmapped_category_fallback",
			}
		}
	}

	if stage1Confidence < stage1ConfidenceFloor {
		m.RequiresReview = true
	}
	return m
}

// mapEquipment applies the capitalization rule: equipment lines at or
// above the capitalization threshold are booked to the fixed-asset
// account and always reviewed; below threshold they're treated as a
// repair/maintenance expense with no forced review.
func mapEquipment(lineTotal, threshold decimal.Decimal) Mapping {
	if lineTotal.GreaterThanOrEqual(threshold) {
		return Mapping{
			AccountCode:    equipmentAssetAccountCode,
			AccountName:    equipmentAssetAccountName,
			Confidence:     1.0,
			RequiresReview: true,
			Rule:           "capitalization_threshold",
		}
	}
	return Mapping{
		AccountCode: equipmentRepairAccountCode,
		AccountName: equipmentRepairAccountName,
		Confidence:  1.0,
		Rule:        "capitalization_threshold",
	}
}
