package extract

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the LLM prompt and model parameters for bill structuring.
type PromptConfig struct {
	BillStructuring struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"bill_structuring"`
}

// LoadPrompts loads prompt configuration from a YAML file.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return &prompts, nil
}

// DefaultPrompts returns the built-in bill structuring prompt, used when no
// prompts file is configured.
func DefaultPrompts() *PromptConfig {
	var prompts PromptConfig
	prompts.BillStructuring.Temperature = 0.2
	prompts.BillStructuring.MaxTokens = 2000
	prompts.BillStructuring.System = "You are a smart parser for hardware and sanitary dealer bills. " +
		"You receive raw OCR text from a scanned purchase invoice and convert it to structured JSON. " +
		"Always respond with valid JSON only, no prose."
	prompts.BillStructuring.UserTemplate = `Parse the OCR text below into JSON with exactly this structure:

{
  "dealer": {
    "dealerName": "",
    "dealerGSTIN": "",
    "invoiceNumber": "",
    "invoiceDate": "",
    "totalAmount": 0
  },
  "items": [
    {
      "itemName": "",
      "brand": "",
      "category": "",
      "quantity": 0,
      "unit": "",
      "specifications": {
        "size": "",
        "color": "",
        "material": "",
        "variant": "",
        "weight": "",
        "dimensions": ""
      },
      "price": {
        "mrp": 0,
        "sellingPrice": 0,
        "ownerDealPrice": 0
      },
      "hsn": "",
      "confidenceScore": 0.9
    }
  ]
}

OCR TEXT:
"""
{{.OCRText}}
"""`
	return &prompts
}

// renderTemplate renders a prompt template with provided data.
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
