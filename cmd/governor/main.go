// governor runs the regime-governance loop: it reads one JSON factor
// sample per line from stdin, evaluates each through the policy engine,
// cross-checks against the oracle, and appends the verdict to the
// verification ledger.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"regimegov/internal/config"
	"regimegov/internal/factors"
	"regimegov/internal/ledger"
	"regimegov/internal/supervisor"
)

// #region main
func main() {
	_ = godotenv.Load()

	cfgPath := envOr("GOV_CONFIG", "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ct, err := cfg.Contract()
	if err != nil {
		log.Fatalf("contract: %v", err)
	}

	led, err := ledger.Open(cfg.LedgerConfig())
	if err != nil {
		var corrupt *ledger.CorruptionError
		if errors.As(err, &corrupt) {
			// Never resume writing over a corrupt chain.
			log.Fatalf("refusing to start: %v", corrupt)
		}
		log.Fatalf("open ledger: %v", err)
	}
	defer led.Close()

	sup := supervisor.New(cfg.SupervisorConfig(ct), led, supervisor.LogAlertSink{})

	// Run id ties this process's log lines together across restarts against
	// the same ledger.
	runID := uuid.NewString()[:8]
	log.Printf("[GOV] run=%s node=%s ledger=%s entries=%d", runID, cfg.NodeID, cfg.LedgerPath, led.Len())

	fmt.Println("Regime governor ready.")
	fmt.Printf("  run: %s | ledger: %s (%d entries) | node: %s | halt_on_drift: %v\n",
		runID, cfg.LedgerPath, led.Len(), cfg.NodeID, cfg.HaltOnDrift)
	fmt.Println("Feed one JSON factor sample per line ('clear' unfreezes, 'quit' exits):")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "clear" {
			sup.ClearFreeze()
			continue
		}

		var sample factors.Sample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			log.Printf("bad sample: %v", err)
			continue
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now().UTC()
		}

		res, err := sup.Cycle(sample)
		if err != nil {
			log.Printf("cycle error: %v", err)
			continue
		}

		fmt.Printf("[GOV] regime=%s score=%.4f action=%s drift=%v entry=%.12s\n",
			res.Snapshot.Regime, res.Snapshot.Score, res.Snapshot.Decision.Action,
			res.Verdict.DriftDetected, res.Entry.EntryID)
		if res.Halted {
			fmt.Println("[GOV] transitions frozen until 'clear'")
		}
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
