package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"

	"inventory-agent/internal/model"
)

// ErrNotTransactional reports that a message is neither a purchase nor
// a sale confirmation. Callers skip the message and mark it processed.
var ErrNotTransactional = errors.New("message is not a purchase or sale")

// Extractor pulls a structured transaction out of an order email.
type Extractor interface {
	Extract(ctx context.Context, subject, body string) (*model.Transaction, error)
}

// ExtractedItem mirrors one product line as the model reports it.
// Numeric fields use -1 for "not stated" so absence survives the
// strict schema round trip.
type ExtractedItem struct {
	Name      string  `json:"name" jsonschema_description:"Exact product name from the email, or empty string if missing"`
	SKU       string  `json:"sku" jsonschema_description:"SKU if present, otherwise empty string"`
	UPC       string  `json:"upc" jsonschema_description:"UPC barcode if present, otherwise empty string"`
	ProductID string  `json:"product_id" jsonschema_description:"Any other product identifier, otherwise empty string"`
	Quantity  int     `json:"quantity" jsonschema_description:"Quantity ordered, or -1 if not stated"`
	UnitPrice float64 `json:"unit_price" jsonschema_description:"Per-unit purchase price excluding tax, or -1 if not stated"`
	SalePrice float64 `json:"sale_price" jsonschema_description:"Per-unit sale price excluding tax, or -1 if not stated"`
}

// ExtractedTransaction is the structured-output envelope. Never guess:
// the completeness gate downstream decides what to do about gaps.
type ExtractedTransaction struct {
	Type          string          `json:"type" jsonschema:"enum=purchase,enum=sale,enum=unknown" jsonschema_description:"'purchase' for orders we placed, 'sale' for orders we received, 'unknown' for anything else"`
	OrderNumber   string          `json:"order_number" jsonschema_description:"Exact order number, or empty string if missing"`
	Date          string          `json:"date" jsonschema_description:"Transaction date in YYYY-MM-DD format, or empty string if missing"`
	VendorName    string          `json:"vendor_name" jsonschema_description:"Vendor name for purchases, otherwise empty string"`
	Channel       string          `json:"channel" jsonschema_description:"Sales channel for sales (eBay, Amazon, ...), otherwise empty string"`
	CustomerEmail string          `json:"customer_email" jsonschema_description:"Customer email address for sales if present, otherwise empty string"`
	Items         []ExtractedItem `json:"items" jsonschema_description:"Every product line in the email, exactly as written"`
	Subtotal      float64         `json:"subtotal" jsonschema_description:"Order subtotal before tax and shipping, or -1 if not stated"`
	Taxes         float64         `json:"taxes" jsonschema_description:"Total tax as a separate figure, or -1 if no tax figure appears anywhere"`
	Shipping      float64         `json:"shipping" jsonschema_description:"Shipping charge, or -1 if not stated"`
	Fees          float64         `json:"fees" jsonschema_description:"Marketplace or payment fees deducted from a sale, or -1 if not stated"`
	Total         float64         `json:"total" jsonschema_description:"Stated order total, or -1 if not stated"`
}

const systemPrompt = `You are an expert email parser for inventory management. Parse purchase and sale confirmation emails with STRICT completeness requirements.

Rules:
1. NEVER guess or invent data. If a field is missing, use the documented missing sentinel (-1 for numbers, empty string for text).
2. Extract EXACTLY what is in the email. Do not interpolate missing values.
3. Tax must be captured separately from item prices.
4. For purchases fill unit_price; for sales fill sale_price.
5. If the email is not a purchase or sale confirmation, set type to "unknown".`

// OpenAIExtractor implements Extractor with OpenAI structured output.
type OpenAIExtractor struct {
	client      *openai.Client
	model       string
	temperature float64
}

func NewOpenAIExtractor(apiKey, modelName string, temperature float64) *OpenAIExtractor {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if modelName == "" {
		modelName = string(shared.ChatModelGPT4o)
	}
	return &OpenAIExtractor{client: &client, model: modelName, temperature: temperature}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, subject, body string) (*model.Transaction, error) {
	subject = Sanitize(subject)
	body = Sanitize(body)

	schemaJSON, err := json.Marshal(generateSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("unmarshal schema to map: %w", err)
	}

	prompt := fmt.Sprintf("%s\n\nSubject: %s\n\nBody:\n%s", systemPrompt, subject, body)

	params := responses.ResponseNewParams{
		Model:       shared.ResponsesModel(e.model),
		Temperature: param.NewOpt(e.temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "transaction_extraction",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A purchase or sale transaction extracted from an order email"),
				},
			},
		},
	}

	resp, err := e.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var extracted ExtractedTransaction
	if err := json.Unmarshal([]byte(content), &extracted); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	return MapTransaction(&extracted)
}

func generateSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v ExtractedTransaction
	return reflector.Reflect(v)
}

// MapTransaction converts the extraction envelope into the domain
// transaction, scrubbing null-ish strings and turning -1 sentinels
// back into absent values.
func MapTransaction(ex *ExtractedTransaction) (*model.Transaction, error) {
	switch ex.Type {
	case "purchase", "sale":
	default:
		return nil, ErrNotTransactional
	}

	tx := &model.Transaction{
		Kind:          model.TransactionKind(ex.Type),
		OrderNumber:   cleanString(ex.OrderNumber),
		Date:          cleanString(ex.Date),
		VendorName:    cleanString(ex.VendorName),
		Channel:       cleanString(ex.Channel),
		CustomerEmail: cleanString(ex.CustomerEmail),
		Subtotal:      amountOrZero(ex.Subtotal),
		Taxes:         optionalAmount(ex.Taxes),
		Shipping:      amountOrZero(ex.Shipping),
		Fees:          amountOrZero(ex.Fees),
		Total:         amountOrZero(ex.Total),
		Status:        model.StatusParsed,
	}

	for _, it := range ex.Items {
		li := model.LineItem{
			Name:      cleanString(it.Name),
			SKU:       cleanString(it.SKU),
			UPC:       cleanString(it.UPC),
			ProductID: cleanString(it.ProductID),
		}
		if it.Quantity > 0 {
			li.Quantity = it.Quantity
		}
		li.UnitPrice = optionalAmount(it.UnitPrice)
		li.SalePrice = optionalAmount(it.SalePrice)
		tx.Items = append(tx.Items, li)
	}
	return tx, nil
}

// cleanString trims whitespace and drops the null-ish strings language
// models like to emit in place of absent values.
func cleanString(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "unknown", "-":
		return ""
	}
	return s
}

func amountOrZero(v float64) decimal.Decimal {
	if v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func optionalAmount(v float64) *decimal.Decimal {
	if v < 0 {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}

var (
	cardPattern = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	ssnPattern  = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

const maxInputLength = 10000

// Sanitize redacts card numbers and SSNs and truncates oversized
// bodies before the text leaves the process.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	text = cardPattern.ReplaceAllString(text, "[CARD_NUMBER]")
	text = ssnPattern.ReplaceAllString(text, "[SSN]")
	if len(text) > maxInputLength {
		text = text[:maxInputLength] + "... [truncated]"
	}
	return text
}
