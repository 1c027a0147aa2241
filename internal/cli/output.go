// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-treasury.
//
// go-treasury is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-treasury/pkg/health"
	"github.com/jeremyhahn/go-treasury/pkg/sealedsecret"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// PrintMnemonic prints a generated mnemonic
func (p *Printer) PrintMnemonic(phrase string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"mnemonic": phrase,
			"words":    len(strings.Fields(phrase)),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, phrase)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSplit prints the result of a split. locations holds the file or
// storage key of each record.
func (p *Printer) PrintSplit(records []*sharerecord.Record, locations []string) error {
	if len(records) == 0 {
		return fmt.Errorf("no shares to print")
	}
	first := records[0]
	switch p.format {
	case OutputFormatJSON:
		shares := make([]map[string]interface{}, len(records))
		for i, r := range records {
			shares[i] = map[string]interface{}{
				"share_id": r.ShareID,
				"location": locations[i],
			}
		}
		return p.printJSON(map[string]interface{}{
			"split_id":     first.SplitID,
			"network":      first.Network,
			"threshold":    first.Threshold,
			"total_shares": first.TotalShares,
			"created_at":   first.CreatedAt.Format(time.RFC3339),
			"shares":       shares,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Split ID:  %s\n", first.SplitID)
		fmt.Fprintf(p.writer, "Network:   %s\n", first.Network)
		fmt.Fprintf(p.writer, "Scheme:    %d of %d\n", first.Threshold, first.TotalShares)
		fmt.Fprintln(p.writer, "Shares:")
		for i, r := range records {
			fmt.Fprintf(p.writer, "  %3d  %s\n", r.ShareID, locations[i])
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintRecords prints share record metadata without share values.
// compatErr is the result of checking the records against each other.
func (p *Printer) PrintRecords(records []*sharerecord.Record, compatErr error) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(records))
		for i, r := range records {
			list[i] = map[string]interface{}{
				"source":       r.Source,
				"share_id":     r.ShareID,
				"split_id":     r.SplitID,
				"network":      r.Network,
				"threshold":    r.Threshold,
				"total_shares": r.TotalShares,
				"created_at":   r.CreatedAt.Format(time.RFC3339),
				"value_bytes":  len(r.ShareValue),
				"checksum":     r.Checksum != "",
			}
		}
		result := map[string]interface{}{
			"records":    list,
			"compatible": compatErr == nil,
		}
		if compatErr != nil {
			result["error"] = compatErr.Error()
		}
		return p.printJSON(result)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "%-24s %-6s %-36s %-10s %-8s\n", "SOURCE", "SHARE", "SPLIT", "NETWORK", "SCHEME")
		fmt.Fprintln(p.writer, strings.Repeat("-", 88))
		for _, r := range records {
			splitID := r.SplitID
			if splitID == "" {
				splitID = "-"
			}
			fmt.Fprintf(p.writer, "%-24s %-6d %-36s %-10s %d of %d\n",
				r.Source, r.ShareID, splitID, r.Network, r.Threshold, r.TotalShares)
		}
		if compatErr != nil {
			fmt.Fprintf(p.writer, "\nIncompatible: %v\n", compatErr)
			return nil
		}
		if len(records) > 0 {
			need := records[0].Threshold
			if len(records) >= need {
				fmt.Fprintf(p.writer, "\nCompatible: %d shares, %d needed\n", len(records), need)
			} else {
				fmt.Fprintf(p.writer, "\nCompatible: %d shares, %d more needed\n", len(records), need-len(records))
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintInventory prints the stored splits and sealed documents
func (p *Printer) PrintInventory(splits, sealed []string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"splits": splits,
			"sealed": sealed,
		})
	case OutputFormatText:
		if len(splits) == 0 && len(sealed) == 0 {
			fmt.Fprintln(p.writer, "Nothing stored")
			return nil
		}
		fmt.Fprintln(p.writer, "Splits:")
		for _, s := range splits {
			fmt.Fprintf(p.writer, "  - %s\n", s)
		}
		fmt.Fprintln(p.writer, "Sealed:")
		for _, s := range sealed {
			fmt.Fprintf(p.writer, "  - %s\n", s)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecret prints a recovered or unsealed secret
func (p *Printer) PrintSecret(secret []byte, used []int) error {
	switch p.format {
	case OutputFormatJSON:
		result := map[string]interface{}{
			"secret": string(secret),
		}
		if used != nil {
			result["shares_used"] = used
		}
		return p.printJSON(result)
	case OutputFormatText:
		if _, err := p.writer.Write(secret); err != nil {
			return err
		}
		fmt.Fprintln(p.writer)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSealed prints a summary of a sealed document
func (p *Printer) PrintSealed(name string, doc *sealedsecret.Document) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"name":       name,
			"context":    doc.Context,
			"created_at": doc.CreatedAt.Format(time.RFC3339),
			"provider":   doc.WrappedKey.Type,
			"key_id":     doc.WrappedKey.KeyID,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Sealed:   %s\n", name)
		fmt.Fprintf(p.writer, "Context:  %s\n", doc.Context)
		fmt.Fprintf(p.writer, "Provider: %s\n", doc.WrappedKey.Type)
		if doc.WrappedKey.KeyID != "" {
			fmt.Fprintf(p.writer, "Key ID:   %s\n", doc.WrappedKey.KeyID)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintEnvelope prints a base64 envelope
func (p *Printer) PrintEnvelope(text string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"envelope": text,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, text)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintChecks prints preflight check results
func (p *Printer) PrintChecks(status health.Status, results []health.CheckResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": status,
			"checks": results,
		})
	case OutputFormatText:
		for _, r := range results {
			fmt.Fprintf(p.writer, "%-10s %-10s %s\n", r.Name, r.Status, r.Message)
			if r.Error != "" {
				fmt.Fprintf(p.writer, "%-10s %-10s %s\n", "", "", r.Error)
			}
		}
		fmt.Fprintf(p.writer, "\nStatus: %s\n", status)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
