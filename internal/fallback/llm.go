package fallback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LLMContext is the context object accompanying the high-confidence block
// text in the normalizer request.
type LLMContext struct {
	Region       string `json:"region"`
	Industry     string `json:"industry"`
	DocumentType string `json:"document_type"`
}

// LLMLine mirrors one entry of the schema's "lines" array.
type LLMLine struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	LineTotal   *float64 `json:"line_total"`
	TaxRate     *float64 `json:"tax_rate"`
}

// LLMResponse is the strict JSON schema the normalizer contract requires.
// Fields are pointers so a present-but-null JSON value and an absent key are
// distinguishable during validation.
type LLMResponse struct {
	SupplierName  *string  `json:"supplier_name"`
	InvoiceNumber *string  `json:"invoice_number"`
	InvoiceDate   *string  `json:"invoice_date"`
	Currency      *string  `json:"currency"`
	Subtotal      *float64 `json:"subtotal"`
	TaxAmount     *float64 `json:"tax_amount"`
	TotalAmount   *float64 `json:"total_amount"`
	Lines         []LLMLine `json:"lines"`
	Confidence    float64   `json:"confidence"`
	Notes         *string   `json:"notes"`
}

var validCurrencies = map[string]bool{"GBP": true, "EUR": true, "USD": true, "": true}

// valid reports whether a decoded response satisfies the schema's field
// presence and currency-enum constraints; non-conforming responses are
// discarded rather than merged.
func (r LLMResponse) valid() bool {
	if r.Currency != nil && !validCurrencies[*r.Currency] {
		return false
	}
	for _, line := range r.Lines {
		if line.Description == "" {
			return false
		}
	}
	return true
}

// LLMClient calls the Gemini generative model constrained to the strict
// JSON response schema.
type LLMClient struct {
	apiKey string
	model  string
}

// NewLLMClient builds a client for the named Gemini model.
func NewLLMClient(apiKey, model string) *LLMClient {
	return &LLMClient{apiKey: apiKey, model: model}
}

// Normalize sends the concatenation of high-confidence block texts plus a
// document context object and returns the validated response. A transport
// failure, a non-JSON reply, or a schema violation returns ok=false; the
// pipeline proceeds without merge in that case.
func (c *LLMClient) Normalize(ctx context.Context, text string, lctx LLMContext) (LLMResponse, bool) {
	if c.apiKey == "" {
		return LLMResponse{}, false
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return LLMResponse{}, false
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = normalizerSchema()

	prompt := buildPrompt(text, lctx)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return LLMResponse{}, false
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return LLMResponse{}, false
	}

	var raw string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			raw = string(t)
			break
		}
	}
	if raw == "" {
		return LLMResponse{}, false
	}

	var out LLMResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return LLMResponse{}, false
	}
	if !out.valid() {
		return LLMResponse{}, false
	}

	return out, true
}

func buildPrompt(text string, lctx LLMContext) string {
	return fmt.Sprintf(
		"Extract invoice fields as JSON matching the schema. Context: region=%s industry=%s document_type=%s.\n\nText:\n%s",
		lctx.Region, lctx.Industry, lctx.DocumentType, text)
}

func normalizerSchema() *genai.Schema {
	lineSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
			"quantity":    {Type: genai.TypeNumber, Nullable: true},
			"unit_price":  {Type: genai.TypeNumber, Nullable: true},
			"line_total":  {Type: genai.TypeNumber, Nullable: true},
			"tax_rate":    {Type: genai.TypeNumber, Nullable: true},
		},
		Required: []string{"description"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"supplier_name":  {Type: genai.TypeString, Nullable: true},
			"invoice_number": {Type: genai.TypeString, Nullable: true},
			"invoice_date":   {Type: genai.TypeString, Nullable: true},
			"currency":       {Type: genai.TypeString, Nullable: true},
			"subtotal":       {Type: genai.TypeNumber, Nullable: true},
			"tax_amount":     {Type: genai.TypeNumber, Nullable: true},
			"total_amount":   {Type: genai.TypeNumber, Nullable: true},
			"lines":          {Type: genai.TypeArray, Items: lineSchema},
			"confidence":     {Type: genai.TypeNumber},
			"notes":          {Type: genai.TypeString, Nullable: true},
		},
		Required: []string{"confidence"},
	}
}
