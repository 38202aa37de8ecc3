package ner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHappyPath(t *testing.T) {
	text := "Owner: Ravi Kumar\nSurvey No. 45/2A Hissa No. 2\n" +
		"Village: HEBBAL Taluk: Bangalore District: Bangalore\n" +
		"Extent: 2 Acres 10 Guntas"
	bundle, warnings := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.Empty(t, warnings)
	assert.Equal(t, "Ravi Kumar", bundle.Owner)
	assert.Equal(t, "45/2A", bundle.SurveyNumber)
	assert.Equal(t, "2", bundle.HissaNumber)
	assert.Equal(t, "HEBBAL", bundle.Village)
	assert.Equal(t, 2, bundle.ExtentAcres)
	assert.Equal(t, 10, bundle.ExtentGuntas)
	assert.Empty(t, bundle.Loans)
	assert.Empty(t, bundle.Cases)
}

func TestExtractLoan(t *testing.T) {
	text := "Owner: Ravi Kumar Survey No. 45/2A\n" +
		"Loan of ₹500,000 granted by State Bank of India Puravara branch"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	require.Len(t, bundle.Loans, 1)
	assert.Equal(t, int64(500000), bundle.Loans[0].Amount)
	assert.Equal(t, "State Bank of India", bundle.Loans[0].Bank)
	assert.Contains(t, bundle.Loans[0].Context, "granted")
}

func TestExtractLoanIndianGrouping(t *testing.T) {
	text := "Mortgage charge created for Rs. 5,00,000/- with Canara Bank"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	require.Len(t, bundle.Loans, 1)
	assert.Equal(t, int64(500000), bundle.Loans[0].Amount)
	assert.Equal(t, "Canara Bank", bundle.Loans[0].Bank)
}

func TestBankCanonicalization(t *testing.T) {
	text := "loan from Manager S.B.M. of ₹385,606"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	require.Len(t, bundle.Loans, 1)
	assert.Equal(t, "State Bank of Mysore (now SBI)", bundle.Loans[0].Bank)
}

func TestExtractCases(t *testing.T) {
	text := "Civil Suit No. 45/2012 and O.S. No. 12/2009 pending before the court"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.Equal(t, []string{"45/2012", "12/2009"}, bundle.Cases)
}

func TestSurveyNumberNotConfusedWithDate(t *testing.T) {
	text := "Registered on 12/11/2015. Survey No. 178/1"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.Equal(t, "178/1", bundle.SurveyNumber)
	assert.Equal(t, []string{"12/11/2015"}, bundle.Dates)
}

func TestDatesRequireFullYear(t *testing.T) {
	text := "dated 01/02/2020 also 3/4 noise 2021-05-06"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.ElementsMatch(t, []string{"01/02/2020", "2021-05-06"}, bundle.Dates)
}

func TestValidityWindow(t *testing.T) {
	text := "Validity From: 01/04/2023 Valid To: 31/03/2024 Digitally Signed on 05/04/2023"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.Equal(t, "2023-04-01", bundle.ValidFrom)
	assert.Equal(t, "2024-03-31", bundle.ValidTo)
	assert.Equal(t, "2023-04-05", bundle.DigitallySignedDate)
}

func TestMutationPendingFlag(t *testing.T) {
	text := "Mutation No. 14/3 is pending before the tahsildar"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	require.Len(t, bundle.Mutations, 1)
	assert.Equal(t, "14/3", bundle.Mutations[0].RecordNumber)
	assert.True(t, bundle.Mutations[0].Pending)
}

func TestListsDedupedPreservingFirstAppearance(t *testing.T) {
	text := "Case No: 45/2012 mentioned again as Case No: 45/2012 then Case No: 7/2001"
	bundle, _ := NewExtractor(NopModel{}, 0.5, nil).Extract(context.Background(), text)

	assert.Equal(t, []string{"45/2012", "7/2001"}, bundle.Cases)
}

type stubModel struct {
	spans []Span
	err   error
}

func (s stubModel) Spans(context.Context, string) ([]Span, error) { return s.spans, s.err }

func TestModelFillsMissingSingleton(t *testing.T) {
	text := "some text without any labelled owner"
	model := stubModel{spans: []Span{
		{Field: FieldOwner, Text: "Manjunath Gowda", Confidence: 0.8, Start: 5},
	}}
	bundle, _ := NewExtractor(model, 0.5, nil).Extract(context.Background(), text)
	assert.Equal(t, "Manjunath Gowda", bundle.Owner)
}

func TestRuleBeatsModelForSingleton(t *testing.T) {
	text := "Owner: Ravi Kumar owns this parcel"
	model := stubModel{spans: []Span{
		{Field: FieldOwner, Text: "Someone Else", Confidence: 0.99, Start: 0},
	}}
	bundle, _ := NewExtractor(model, 0.5, nil).Extract(context.Background(), text)
	assert.Equal(t, "Ravi Kumar", bundle.Owner)
}

func TestModelBelowFloorIgnored(t *testing.T) {
	model := stubModel{spans: []Span{
		{Field: FieldOwner, Text: "Low Confidence", Confidence: 0.3, Start: 0},
	}}
	bundle, _ := NewExtractor(model, 0.5, nil).Extract(context.Background(), "no owner here")
	assert.Empty(t, bundle.Owner)
}

func TestModelCannotInventFields(t *testing.T) {
	model := stubModel{spans: []Span{
		{Field: "aadhaar_number", Text: "1234 5678 9012", Confidence: 0.95, Start: 0},
	}}
	bundle, _ := NewExtractor(model, 0.5, nil).Extract(context.Background(), "text")
	// nothing in the schema carries it anywhere
	assert.Empty(t, bundle.Owner)
	assert.Empty(t, bundle.Cases)
}

func TestModelFailureIsSoft(t *testing.T) {
	model := stubModel{err: errors.New("model service down")}
	text := "Owner: Ravi Kumar Survey No. 45/2A"
	bundle, warnings := NewExtractor(model, 0.5, nil).Extract(context.Background(), text)

	assert.Equal(t, "Ravi Kumar", bundle.Owner)
	assert.Contains(t, warnings, WarnModelUnavailable)
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"500,000", 500000, true},
		{"5,00,000", 500000, true},
		{"₹385,606", 385606, true},
		{"550,000/-", 550000, true},
		{"1234.56", 1234, true},
		{"999", 0, false}, // below the noise floor
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := NormalizeAmount(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.out, got, tc.in)
	}
}

func TestSplitExtent(t *testing.T) {
	acres, guntas, ok := SplitExtent("2 Acres 10 Guntas")
	require.True(t, ok)
	assert.Equal(t, 2, acres)
	assert.Equal(t, 10, guntas)

	acres, guntas, ok = SplitExtent("2.5 Acres")
	require.True(t, ok)
	assert.Equal(t, 2, acres)
	assert.Equal(t, 20, guntas)

	acres, guntas, ok = SplitExtent("15 Guntas")
	require.True(t, ok)
	assert.Equal(t, 0, acres)
	assert.Equal(t, 15, guntas)

	_, _, ok = SplitExtent("no extent at all")
	assert.False(t, ok)
}
