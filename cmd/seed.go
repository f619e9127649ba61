package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"socdash/core"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	maxSeedCount  = 100000
	seedBatchSize = 1000
)

type demoRule struct {
	id       string
	name     string
	severity string
	desc     string
}

var demoRules = []demoRule{
	{"5710", "SSH brute force attempt", core.SeverityHigh, "Multiple failed SSH logins from the same source"},
	{"5712", "SSH login with non-existent user", core.SeverityMedium, "Login attempt for an unknown account"},
	{"31101", "Web server 400 error code", core.SeverityLow, "Client error returned by the web server"},
	{"31151", "Multiple web server 400 errors", core.SeverityMedium, "Possible web scan from a single source"},
	{"31164", "SQL injection attempt", core.SeverityHigh, "Query string matches SQL injection patterns"},
	{"40111", "Port scan detected", core.SeverityMedium, "Connections to many ports in a short window"},
	{"87105", "Ransomware file extension observed", core.SeverityCritical, "Files renamed with a known ransomware extension"},
	{"92052", "Mimikatz execution", core.SeverityCritical, "Credential dumping tool started on the host"},
	{"550", "Integrity checksum changed", core.SeverityLow, "Monitored file content changed"},
	{"60122", "Windows logon failure", core.SeverityLow, "Failed interactive logon"},
}

var (
	demoAttackers = []string{"203.0.113.7", "198.51.100.23", "192.0.2.44", "203.0.113.150", "198.51.100.99", "2001:db8::bad:1"}
	demoTargets   = []string{"10.0.1.10", "10.0.1.11", "10.0.2.20", "10.0.3.5"}
	demoAgents    = []string{"web-01", "web-02", "db-01", "dc-01", "vpn-gw"}
	demoStatuses  = []string{"open", "open", "open", "acknowledged", "resolved"}
)

func newSeedCmd() *cobra.Command {
	var (
		count int
		hours int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo alerts into ClickHouse",
		Long: `Insert randomly generated demo alerts into the alerts table so the dashboard
and the chatbot have data to work with. The table is created if missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || count > maxSeedCount {
				return fmt.Errorf("--count must be between 1 and %d", maxSeedCount)
			}
			if hours < 1 || hours > 720 {
				return fmt.Errorf("--hours must be between 1 and 720")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Storage.ClickHouse.CreateTablesIfNotExist(ctx); err != nil {
				return err
			}

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			alerts := generateDemoAlerts(rand.New(rand.NewSource(seed)), count, hours, time.Now().UTC())

			var s *spinner.Spinner
			if !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = fmt.Sprintf(" Inserting %d alerts...", count)
				s.Start()
			}

			inserted := 0
			for start := 0; start < len(alerts); start += seedBatchSize {
				end := start + seedBatchSize
				if end > len(alerts) {
					end = len(alerts)
				}
				if err = app.Storage.AlertStorage.InsertAlerts(ctx, alerts[start:end]); err != nil {
					break
				}
				inserted = end
			}

			if s != nil {
				s.Stop()
			}

			if outputJSON {
				if encErr := outputAsJSON(cmd.OutOrStdout(), map[string]int{"inserted": inserted}); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				if !outputJSON {
					fmt.Fprintln(cmd.ErrOrStderr(), errorColor.Sprintf("Inserted %d of %d alerts before failing", inserted, count))
				}
				return fmt.Errorf("failed to insert alerts: %w", err)
			}
			if !outputJSON {
				fmt.Fprintln(cmd.OutOrStdout(), successColor.Sprintf("Inserted %d demo alerts covering the last %d hours", inserted, hours))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 500, "Number of alerts to insert")
	cmd.Flags().IntVar(&hours, "hours", 72, "Spread alerts over this many past hours")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible data (0 picks one)")

	return cmd
}

// generateDemoAlerts builds count alerts with timestamps in (now-hours, now].
// Attackers are weighted so the top attackers view has a clear leader.
func generateDemoAlerts(rng *rand.Rand, count, hours int, now time.Time) []core.Alert {
	window := time.Duration(hours) * time.Hour
	alerts := make([]core.Alert, 0, count)

	for i := 0; i < count; i++ {
		rule := demoRules[rng.Intn(len(demoRules))]

		// squaring skews the pick toward the first attackers
		f := rng.Float64()
		src := demoAttackers[int(f*f*float64(len(demoAttackers)))]

		offset := time.Duration(rng.Int63n(int64(window)))
		alerts = append(alerts, core.Alert{
			AlertID:     uuid.New().String(),
			Timestamp:   now.Add(-offset),
			RuleID:      rule.id,
			RuleName:    rule.name,
			Severity:    rule.severity,
			SrcIP:       src,
			DstIP:       demoTargets[rng.Intn(len(demoTargets))],
			AgentName:   demoAgents[rng.Intn(len(demoAgents))],
			Description: rule.desc,
			Status:      demoStatuses[rng.Intn(len(demoStatuses))],
		})
	}
	return alerts
}
