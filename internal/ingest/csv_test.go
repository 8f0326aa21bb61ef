package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCSV_Duty(t *testing.T) {
	data := []byte(`destination,partner_id,hs6,rule_type,ad_valorem_percent,specific_amount,specific_unit,currency,effective_from,effective_to,source_url
DE,,610910,MFN,12,,,,2025-01-01,,https://tariffs.example.com/eu.csv
DE,EU-KR,610910,FTA,0,,,,2025-01-01,,https://tariffs.example.com/eu.csv
`)

	rows, err := DecodeCSV(KindDuty, data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, KindDuty, rows[0].Kind)
	require.NotNil(t, rows[0].Duty)
	assert.Equal(t, "DE", rows[0].Duty.Destination)
	assert.Equal(t, "12", rows[0].Duty.AdValoremPercent)
	assert.Equal(t, "EU-KR", rows[1].Duty.PartnerID)

	// Decoded rows survive normalization end to end.
	records, dropped := Normalize(rows)
	assert.Empty(t, dropped)
	assert.Len(t, records, 2)
}

func TestDecodeCSV_Fx(t *testing.T) {
	data := []byte(`base,quote,rate,as_of,source_url
USD,EUR,0.9132,2025-03-10,https://fx.example.com/daily
USD,JPY,149.8255,2025-03-10,https://fx.example.com/daily
`)

	rows, err := DecodeCSV(KindFx, data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "EUR", rows[0].Fx.Quote)
	assert.Equal(t, "0.9132", rows[0].Fx.Rate)
}

func TestDecodeCSV_Freight(t *testing.T) {
	data := []byte(`mode,unit,currency,upto_quantity,price_per_unit,effective_from,effective_to,source_url
air,kg,USD,10,8.00,2025-01-01,,
air,kg,USD,50,5.50,2025-01-01,,
`)

	rows, err := DecodeCSV(KindFreight, data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	records, dropped := Normalize(rows)
	require.Empty(t, dropped)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Freight.Steps, 2)
}

func TestDecodeCSV_Malformed(t *testing.T) {
	_, err := DecodeCSV(KindVat, []byte("destination,rate_percent\nGB"))
	assert.Error(t, err)
}

func TestDecodeCSV_UnknownKind(t *testing.T) {
	_, err := DecodeCSV(Kind("bogus"), []byte("a,b\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown csv row kind")
}
