// check-structuring exercises the LLM bill structuring path against the live
// OpenAI API. It reads OCR text from a file (or uses a built-in sample) and
// prints the structured bill, for verifying credentials and prompt changes
// without uploading a real bill.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
)

const sampleOCRText = `SHREE BALAJI HARDWARE & SANITARY
GSTIN: 27AABCS1429B1ZB
Invoice No: INV-2024-0312    Date: 12/03/2024

1. Asian Paints Apex Ultima 20L        2   Rs. 5400.00   10800.00
2. Jaquar Single Lever Basin Mixer     5   Rs. 2150.00   10750.00
3. Finolex PVC Pipe 3/4 inch 3m       20   Rs. 180.00     3600.00

Total: Rs. 25150.00`

func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	model := flag.String("model", "gpt-4o", "model to use")
	promptsPath := flag.String("prompts", "", "prompts YAML path (built-in prompts when empty)")
	textPath := flag.String("text", "", "file with OCR text (built-in sample when empty)")
	timeout := flag.Duration("timeout", 60*time.Second, "API call timeout")
	flag.Parse()

	_ = gotenv.Load()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	prompts := extract.DefaultPrompts()
	if *promptsPath != "" {
		prompts, err = extract.LoadPrompts(*promptsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load prompts: %v\n", err)
			os.Exit(1)
		}
	}

	ocrText := sampleOCRText
	if *textPath != "" {
		raw, err := os.ReadFile(*textPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read OCR text file: %v\n", err)
			os.Exit(1)
		}
		ocrText = string(raw)
	}

	structurer := extract.NewStructurer(*apiKey, *model, *timeout, prompts, logger)

	start := time.Now()
	bill, err := structurer.StructureBillText(context.Background(), ocrText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Structuring failed after %v: %v\n", time.Since(start), err)
		os.Exit(1)
	}

	fmt.Printf("Structured in %v: dealer=%q items=%d\n",
		time.Since(start), bill.Dealer.DealerName, len(bill.Items))

	out, err := json.MarshalIndent(bill, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
