package main

import (
    "context"
    "encoding/json"
    "fmt"
    "os"

    "github.com/fatih/color"
    "github.com/olekukonko/tablewriter"
    "github.com/spf13/cobra"

    "github.com/hamzaKhattat/cdr-reconciler/internal/engine"
    "github.com/hamzaKhattat/cdr-reconciler/internal/export"
    "github.com/hamzaKhattat/cdr-reconciler/internal/models"
    "github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
    "github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

var (
    green  = color.New(color.FgGreen).SprintFunc()
    red    = color.New(color.FgRed).SprintFunc()
    yellow = color.New(color.FgYellow).SprintFunc()
    bold   = color.New(color.Bold).SprintFunc()
)

func createReconcileCommand() *cobra.Command {
    var (
        fileA, fileB         string
        mappingAJSON         string
        mappingBJSON         string
        outPath              string
        jsonOut              bool
    )

    cmd := &cobra.Command{
        Use:   "reconcile",
        Short: "Reconcile two CDR files and report discrepancies",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()

            mappingA, err := parseMapping(mappingAJSON)
            if err != nil {
                return fmt.Errorf("invalid --mapping-a: %w", err)
            }
            mappingB, err := parseMapping(mappingBJSON)
            if err != nil {
                return fmt.Errorf("invalid --mapping-b: %w", err)
            }

            release, err := locker.Acquire(ctx, "reconcile", cfg.Lock.LeaseTimeout)
            if err != nil {
                return err
            }
            defer release()

            eng := engine.NewFromConfig(cfg)
            input := models.JobInput{
                FileAPath:         fileA,
                FileADeclaredName: fileA,
                FileBPath:         fileB,
                FileBDeclaredName: fileB,
                MappingA:          mappingA,
                MappingB:          mappingB,
            }

            out, err := eng.Reconcile(ctx, input)
            if err != nil {
                printEngineError(err)
                return err
            }

            if jsonOut {
                return json.NewEncoder(os.Stdout).Encode(out)
            }

            renderSummary(out)
            renderDiscrepancies(out)

            if outPath != "" {
                f, err := os.Create(outPath)
                if err != nil {
                    return fmt.Errorf("failed to create output file: %w", err)
                }
                defer f.Close()
                if err := export.WriteCSV(f, out); err != nil {
                    return fmt.Errorf("failed to write CSV: %w", err)
                }
                fmt.Printf("\nWrote %s\n", outPath)
            }

            return nil
        },
    }

    cmd.Flags().StringVar(&fileA, "file-a", "", "path to your CDR export")
    cmd.Flags().StringVar(&fileB, "file-b", "", "path to the provider's CDR export")
    cmd.Flags().StringVar(&mappingAJSON, "mapping-a", "", "JSON column mapping for file A")
    cmd.Flags().StringVar(&mappingBJSON, "mapping-b", "", "JSON column mapping for file B")
    cmd.Flags().StringVar(&outPath, "out", "", "optional CSV output path")
    cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw JSON job output instead of a table")
    cmd.MarkFlagRequired("file-a")
    cmd.MarkFlagRequired("file-b")
    cmd.MarkFlagRequired("mapping-a")
    cmd.MarkFlagRequired("mapping-b")

    return cmd
}

func createServeCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Run the health and metrics endpoints as a background daemon",
        RunE: func(cmd *cobra.Command, args []string) error {
            logger.Info("reconciler daemon starting")
            runDaemon(context.Background())
            return nil
        },
    }
}

func parseMapping(raw string) (models.Mapping, error) {
    var m models.Mapping
    if raw == "" {
        return m, fmt.Errorf("mapping is required")
    }
    if err := json.Unmarshal([]byte(raw), &m); err != nil {
        return m, err
    }
    return m, nil
}

func printEngineError(err error) {
    fmt.Fprintf(os.Stderr, "%s %s\n", red(bold(errors.Code(err))), err.Error())
}

func renderSummary(out models.JobOutput) {
    s := out.Summary
    fmt.Println(bold("Reconciliation Summary"))
    fmt.Printf("Job ID: %s\n\n", out.JobID)

    table := tablewriter.NewWriter(os.Stdout)
    table.SetHeader([]string{"Metric", "Value"})
    table.SetBorder(false)
    table.SetAutoWrapText(false)

    table.Append([]string{"Total Records (A / B)", fmt.Sprintf("%d / %d", s.TotalRecordsA, s.TotalRecordsB)})
    table.Append([]string{"Matched Records", fmt.Sprintf("%d", s.MatchedRecords)})
    table.Append([]string{"Your / Provider Total Billed", fmt.Sprintf("$%s / $%s", s.YourTotalBilled.StringFixed(2), s.ProviderTotalBilled.StringFixed(2))})
    table.Append([]string{"Billing Difference", colorSigned(s.BillingDifference.StringFixed(2))})
    table.Append([]string{"Total Discrepancies", fmt.Sprintf("%d", s.TotalDiscrepancies)})
    table.Append([]string{"Monetary Impact", colorSigned(s.MonetaryImpact.StringFixed(2))})
    table.Append([]string{"Hung Calls (Yours / Provider)", fmt.Sprintf("%d / %d", s.HungCallsYours, s.HungCallsProvider)})

    table.Render()
}

func colorSigned(v string) string {
    if len(v) > 0 && v[0] == '-' {
        return red(v)
    }
    return green(v)
}

func renderDiscrepancies(out models.JobOutput) {
    if len(out.Discrepancies) == 0 {
        fmt.Println("\nNo discrepancies to display")
        return
    }

    fmt.Println()
    fmt.Println(bold("Sampled Discrepancies"))
    table := tablewriter.NewWriter(os.Stdout)
    table.SetHeader([]string{"Type", "A-Number", "B-Number", "Cost Difference"})
    table.SetBorder(false)
    table.SetAutoWrapText(false)

    for _, d := range out.Discrepancies {
        table.Append([]string{
            string(d.Type),
            d.ANumber,
            d.BNumber,
            colorSigned(d.CostDifference.StringFixed(4)),
        })
    }
    table.Render()

    if out.HasMore {
        fmt.Printf("\n%s\n", yellow(fmt.Sprintf("(showing %d of %d total discrepancies)", len(out.Discrepancies), out.TotalDiscrepancyCount)))
    }
}
