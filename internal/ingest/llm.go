package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxLLMBatch caps one LLM-extraction call; larger batches are rejected
// outright rather than truncated.
const MaxLLMBatch = 2000

var ErrBatchTooLarge = errors.New("llm batch exceeds row cap")

// llmRowSchema is the strict shape an LLM-extracted row must satisfy before
// anything is trusted out of it.
const llmRowSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["country_code", "kind", "basis", "currency", "value", "effective_from", "source_url"],
  "additionalProperties": false,
  "properties": {
    "country_code": {"type": "string", "pattern": "^[A-Z]{2}$"},
    "kind": {"type": "string", "enum": ["DUTY", "VAT"]},
    "basis": {"type": "string", "enum": ["INTRINSIC", "CIF"]},
    "hs6": {"type": "string", "pattern": "^[0-9]{6}$"},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "value": {"type": "number", "minimum": 0},
    "effective_from": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "effective_to": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "source_url": {"type": "string", "format": "uri", "pattern": "^https?://"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var compiledLLMSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource("llm_row.json", strings.NewReader(llmRowSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("llm_row.json")
}()

// LLMRow mirrors the validated extraction shape.
type LLMRow struct {
	CountryCode   string   `json:"country_code"`
	Kind          string   `json:"kind"` // DUTY, VAT
	Basis         string   `json:"basis"`
	HS6           string   `json:"hs6,omitempty"`
	Currency      string   `json:"currency"`
	Value         float64  `json:"value"`
	EffectiveFrom string   `json:"effective_from"`
	EffectiveTo   string   `json:"effective_to,omitempty"`
	SourceURL     string   `json:"source_url"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

// DecodeLLMRows validates an LLM-extraction payload (a JSON array) against
// the row schema and converts passing rows into the raw-row union. Rows
// failing schema validation are dropped and reported per index; only the
// batch cap is fatal.
func DecodeLLMRows(data []byte) ([]RawRow, []RowError, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("llm payload is not a JSON array: %w", err)
	}
	if len(rawItems) > MaxLLMBatch {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(rawItems), MaxLLMBatch)
	}

	var rows []RawRow
	var dropped []RowError
	for i, item := range rawItems {
		var generic interface{}
		if err := json.Unmarshal(item, &generic); err != nil {
			dropped = append(dropped, RowError{Index: i, Reason: err.Error()})
			continue
		}
		if err := compiledLLMSchema.Validate(generic); err != nil {
			dropped = append(dropped, RowError{Index: i, Reason: err.Error()})
			continue
		}

		var row LLMRow
		if err := json.Unmarshal(item, &row); err != nil {
			dropped = append(dropped, RowError{Index: i, Reason: err.Error()})
			continue
		}

		value := fmt.Sprintf("%g", row.Value)
		switch row.Kind {
		case "DUTY":
			if row.HS6 == "" {
				dropped = append(dropped, RowError{Index: i, Reason: "duty extraction requires hs6"})
				continue
			}
			rows = append(rows, RawRow{Kind: KindDuty, Duty: &DutyRow{
				Destination:      row.CountryCode,
				HS6:              row.HS6,
				RuleType:         "MFN",
				AdValoremPercent: value,
				EffectiveFrom:    row.EffectiveFrom,
				EffectiveTo:      row.EffectiveTo,
				SourceURL:        row.SourceURL,
			}})
		case "VAT":
			// Extracted VAT rows land on the plain CIF base; the richer
			// CIF_PLUS_DUTY base only comes from structured adapters.
			rows = append(rows, RawRow{Kind: KindVat, Vat: &VatRow{
				Destination:   row.CountryCode,
				RatePercent:   value,
				Base:          "CIF",
				EffectiveFrom: row.EffectiveFrom,
				EffectiveTo:   row.EffectiveTo,
				SourceURL:     row.SourceURL,
			}})
		}
	}

	return rows, dropped, nil
}
