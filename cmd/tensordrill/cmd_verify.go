package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/storage/sqlite"
)

func cmdVerify(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tensordrill verify <problem-id>")
	}
	problemID := args[0]

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	spec, err := s.registry.Card(problemID)
	if err != nil {
		return fmt.Errorf("card %s: %w", problemID, err)
	}

	decision, err := s.pipeline.Verify(context.Background(), spec, nil)
	if err != nil {
		return fmt.Errorf("verify %s: %w", problemID, err)
	}

	if err := persistDecisions(s, decision); err != nil {
		return err
	}

	printDecision(decision)
	return nil
}

func cmdVerifyAll(args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	cards := s.registry.ListCards()
	if len(cards) == 0 {
		fmt.Printf("No cards found in %s\n", s.cfg.CardsPath)
		return nil
	}

	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })

	decisions := make([]*domain.VerificationDecision, 0, len(cards))
	counts := map[domain.VerificationStatus]int{}
	for _, spec := range cards {
		decision, err := s.pipeline.Verify(context.Background(), spec, nil)
		if err != nil {
			return fmt.Errorf("verify %s: %w", spec.ID, err)
		}
		decisions = append(decisions, decision)
		counts[decision.Status]++

		marker := "✓"
		if decision.Status != domain.StatusVerified {
			marker = "✗"
		}
		fmt.Printf("%s %-40s %s\n", marker, spec.ID, decision.Status)
		for _, blocker := range decision.Blockers {
			fmt.Printf("    blocker: %s\n", blocker)
		}
	}

	if err := persistDecisions(s, decisions...); err != nil {
		return err
	}

	fmt.Printf("\n%d cards: %d verified, %d needs_review, %d rejected\n",
		len(decisions),
		counts[domain.StatusVerified],
		counts[domain.StatusNeedsReview],
		counts[domain.StatusRejected],
	)
	return nil
}

// persistDecisions records decisions in the SQLite snapshot store so the
// daemon can seed its review queue from the last verification run.
func persistDecisions(s *stack, decisions ...*domain.VerificationDecision) error {
	if s.cfg.SnapshotPath == "" {
		return nil
	}

	db, err := sqlite.Open(s.cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer db.Close()

	if err := sqlite.NewSnapshotStore(db).SaveBatch(decisions); err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	return nil
}

func printDecision(decision *domain.VerificationDecision) {
	fmt.Printf("Problem:  %s\n", decision.ProblemID)
	fmt.Printf("Status:   %s\n", decision.Status)
	if decision.ApprovalType != "" {
		fmt.Printf("Approval: %s\n", decision.ApprovalType)
	}
	if decision.Metadata.VerifiedAtISO != "" {
		fmt.Printf("Verified: %s\n", decision.Metadata.VerifiedAtISO)
	}
	fmt.Printf("Pipeline: %s\n", decision.Metadata.PipelineVersion)

	if len(decision.Blockers) > 0 {
		fmt.Println("\nBlockers:")
		for _, blocker := range decision.Blockers {
			fmt.Printf("  - %s\n", blocker)
		}
	}
	if len(decision.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, warning := range decision.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
}
