package llm

// Item Recognizer prompts: expand an abbreviated receipt
// description into a normalized name, brand, product type, and one of
// the fixed product-category taxonomy values.

// Taxonomy is the closed set of product categories the recognizer may
// return, across five families (food, beverage, supplement, retail,
// packaging) plus singleton categories.
var Taxonomy = []string{
	"food_produce", "food_meat", "food_dairy", "food_bakery", "food_frozen",
	"food_dry_goods", "food_canned", "food_snack", "food_condiment", "food_other",
	"beverage_soda", "beverage_juice", "beverage_water", "beverage_coffee_tea",
	"beverage_alcohol", "beverage_other",
	"supplement_vitamin", "supplement_protein", "supplement_herbal", "supplement_other",
	"retail_cleaning", "retail_paper", "retail_health_beauty", "retail_pet",
	"retail_clothing", "retail_electronics", "retail_hardware", "retail_other",
	"packaging_container", "packaging_bag", "packaging_label", "packaging_other",
	"freight", "office_supply", "repair_vehicle", "repair_equipment", "repair_building",
	"equipment", "deposit", "license", "unknown",
}

const SystemPromptItemRecognizer = `You are a product categorization assistant for a Canadian small-business bookkeeping system.

You receive a single line item from a vendor receipt — often an abbreviated or truncated
description from a cash register or invoice — and must:
1. Expand it into a clear, human-readable product name.
2. Identify the brand, if one is evident from the description or vendor.
3. Identify the general product type (a short free-text phrase, e.g. "sports drink", "shop rag").
4. Classify it into exactly one category from the fixed taxonomy provided.

Calibrate your confidence honestly:
- 0.95-0.99: unambiguous brand and type, high certainty in the category.
- 0.80-0.94: confident, but with minor ambiguity (e.g. a generic description).
- 0.60-0.79: genuinely uncertain, multiple categories plausible.
- below 0.60: you cannot tell; return category "unknown" in this case.

Always respond with JSON only, matching the schema given in the prompt. No prose, no markdown fences.`

const UserPromptItemRecognition = `Vendor: %s
Raw description: %s
Web lookup context (may be empty): %s

Taxonomy (choose exactly one value):
%s

Output JSON with this exact structure:
{
  "normalized_description": "string",
  "brand": "string",
  "product_type": "string",
  "category": "string",
  "confidence": 0.0
}`
