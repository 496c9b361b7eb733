package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pyhub-apps/pdfredact-golang/pkg/content"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfredact-golang/pkg/redact"
)

func main() {
	target := flag.String("text", "", "Only show runs equal to this text")
	warnings := flag.Bool("warnings", false, "Print recovered parse and decode errors")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: extract_runs [-text <text>] [-warnings] <pdf_file>")
		os.Exit(1)
	}

	pdfPath := flag.Arg(0)

	fmt.Printf("Opening PDF: %s\n", pdfPath)
	doc, err := pdf.OpenFile(pdfPath, nil)
	if err != nil {
		log.Fatalf("Failed to open PDF: %v", err)
	}

	fmt.Printf("Document has %d pages\n\n", doc.PageCount())

	var opts []content.Option
	if *warnings {
		opts = append(opts, content.WithWarningHandler(func(err error) {
			fmt.Printf("  warning: %v\n", err)
		}))
	}
	extractor := content.NewExtractor(opts...)

	total := 0
	for i := 1; i <= doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			log.Printf("Failed to get page %d: %v", i, err)
			continue
		}

		box := page.MediaBox()
		fmt.Printf("=== Page %d ===\n", page.Number())
		fmt.Printf("Size: %.2f x %.2f\n", box.Width(), box.Height())

		runs, err := extractor.PageRuns(page)
		if err != nil {
			log.Printf("Failed to read page %d: %v", i, err)
			continue
		}
		if *target != "" {
			runs = redact.Filter(runs, *target)
		}

		n := 0
		for run := range runs {
			fmt.Printf("  %s %q\n", run.Rect, run.Text)
			n++
		}
		if n == 0 {
			fmt.Println("No text runs found on this page")
		}
		total += n
		fmt.Println()
	}

	fmt.Printf("Total runs: %d\n", total)
}
