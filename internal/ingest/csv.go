package ingest

import (
	"fmt"

	"github.com/jszwec/csvutil"
)

// DecodeCSV turns a CSV feed of one row kind into raw rows ready for
// Normalize. Header names follow the csv struct tags on the row variants.
func DecodeCSV(kind Kind, data []byte) ([]RawRow, error) {
	switch kind {
	case KindDuty:
		var rows []DutyRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode duty csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindDuty, Duty: &rows[i]}
		}
		return out, nil
	case KindVat:
		var rows []VatRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode vat csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindVat, Vat: &rows[i]}
		}
		return out, nil
	case KindDeMinimis:
		var rows []DeMinimisRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode de_minimis csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindDeMinimis, DeMinimis: &rows[i]}
		}
		return out, nil
	case KindSurcharge:
		var rows []SurchargeRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode surcharge csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindSurcharge, Surcharge: &rows[i]}
		}
		return out, nil
	case KindFx:
		var rows []FxRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode fx csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindFx, Fx: &rows[i]}
		}
		return out, nil
	case KindFreight:
		var rows []FreightRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode freight csv: %w", err)
		}
		out := make([]RawRow, len(rows))
		for i := range rows {
			out[i] = RawRow{Kind: KindFreight, Freight: &rows[i]}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown csv row kind %q", kind)
}
