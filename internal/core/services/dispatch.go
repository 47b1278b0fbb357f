// Package services contains the core orchestration logic of the
// dispatch pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driving"
	"github.com/millhouse-foods/erpsync/internal/httpx"
	"github.com/millhouse-foods/erpsync/internal/logger"
)

// defaultBranchPlant receives every item whose name prefix has no
// explicit route.
const defaultBranchPlant = "1110"

// branchPlantRoutes maps ingredient-name prefixes to branch plants.
var branchPlantRoutes = map[string]string{
	"B_": "1110",
	"P_": "1130",
	"M_": "1120",
}

// Ensure DispatchOrchestrator implements the interface.
var _ driving.DispatchRunner = (*DispatchOrchestrator)(nil)

// DispatchOrchestrator walks a batch of candidate transactions and
// sends each one to the destination at most once, recording every
// outcome in the ledger.
type DispatchOrchestrator struct {
	source  driven.TransactionSource
	ledger  driven.DispatchLedger
	gateway driven.DestinationGateway
	cache   driven.ResponseCache

	now func() time.Time
}

// NewDispatchOrchestrator creates a new dispatch orchestrator. The
// cache is optional; when nil, no read memoization is invalidated
// after dispatches.
func NewDispatchOrchestrator(
	source driven.TransactionSource,
	ledger driven.DispatchLedger,
	gateway driven.DestinationGateway,
	cache driven.ResponseCache,
) *DispatchOrchestrator {
	return &DispatchOrchestrator{
		source:  source,
		ledger:  ledger,
		gateway: gateway,
		cache:   cache,
		now:     time.Now,
	}
}

// Dispatch runs one batch: fetch candidates effective since the given
// time, process each sequentially, aggregate per-item results. A
// single item failing is reported in its result and never aborts the
// batch; a ledger write failure does abort, returning the results
// accumulated so far alongside the error.
func (o *DispatchOrchestrator) Dispatch(ctx context.Context, since time.Time) (*driving.BatchReport, error) {
	report := &driving.BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
	}

	candidates, err := o.source.FetchSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	logger.Info("Dispatch run %s: %d candidates since %s",
		report.RunID, len(candidates), since.UTC().Format(time.RFC3339))

	for i := range candidates {
		result, err := o.processOne(ctx, &candidates[i])
		report.Results = append(report.Results, result)
		switch {
		case result.Skipped:
			report.Skipped++
		case result.Success:
			report.Dispatched++
		default:
			report.Failed++
		}

		// Only a ledger failure is batch-fatal: without a trustworthy
		// ledger the at-most-once guarantee is gone.
		if err != nil {
			report.FinishedAt = o.now().UTC()
			return report, fmt.Errorf("%w for %s: %w", domain.ErrLedgerWrite, result.UniqueTransactionID, err)
		}
	}

	report.FinishedAt = o.now().UTC()
	logger.Info("Dispatch run %s finished: %d dispatched, %d skipped, %d failed",
		report.RunID, report.Dispatched, report.Skipped, report.Failed)
	return report, nil
}

// processOne handles a single candidate. The returned error is
// non-nil only for ledger failures; destination failures are folded
// into the result.
func (o *DispatchOrchestrator) processOne(ctx context.Context, cand *domain.CandidateTransaction) (domain.DispatchResult, error) {
	key := cand.Key()
	result := domain.DispatchResult{
		UniqueTransactionID: key,
		IngredientName:      cand.IngredientName,
	}

	// 1. The ledger decides idempotency: done suppresses redispatch,
	// error and absent both mean the transaction still needs to go.
	status, err := o.ledger.StatusOf(ctx, key)
	if err != nil {
		result.Message = "ledger read failed"
		return result, err
	}
	if status == domain.StatusDone {
		logger.Debug("Transaction %s already done, skipping", key)
		result.Skipped = true
		result.Message = "already dispatched"
		return result, nil
	}

	// 2. Validate before any payload is built. Skipped candidates
	// leave no ledger row; they are not failures, just not sendable.
	if !cand.Dispatchable() {
		logger.Debug("Transaction %s not dispatchable, skipping", key)
		result.Skipped = true
		result.Message = "missing quantity, unit or ingredient name"
		return result, nil
	}

	branchPlant := branchPlantFor(cand.IngredientName)

	// 3. Confirm the ERP knows the item before issuing against it.
	if _, err := o.gateway.ItemMaster(ctx, branchPlant, cand.IngredientName); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.Message = "item not in item master"
		} else {
			result.Message = "item master lookup failed"
		}
		result.Detail = domain.TruncateDetail(err.Error())
		return result, o.recordError(ctx, cand, key, result.Detail)
	}

	order := domain.DispatchOrder{
		BranchPlant:     branchPlant,
		ItemNumber:      cand.IngredientName,
		Explanation:     fmt.Sprintf("BAKERYOPS. DEPL: %s:%s", cand.IngredientID, cand.ActionID),
		Quantity:        cand.Quantity,
		Unit:            cand.Unit,
		LotLabel:        cand.LotLabel(),
		TransactionDate: o.now().UTC(),
	}

	// 4. Send, then record. The ledger write happens after the
	// destination call so a crash in between re-sends rather than
	// silently drops; the destination's own duplicate checks and the
	// identity make the re-send harmless.
	body, err := o.gateway.Dispatch(ctx, order)
	if err != nil {
		result.Message = "dispatch rejected"
		result.Detail = domain.TruncateDetail(dispatchErrorDetail(err))
		logger.Warn("Dispatch of %s failed: %v", key, err)
		return result, o.recordError(ctx, cand, key, result.Detail)
	}

	if err := o.ledger.RecordOutcome(ctx, ledgerRecord(cand, key, domain.StatusDone, string(body))); err != nil {
		result.Message = "ledger write failed"
		return result, err
	}

	// 5. The dispatch changed the branch plant's activity; drop the
	// memoized read so the next lookup sees it.
	o.invalidateActivity(ctx, branchPlant)

	result.Success = true
	result.Message = "dispatched"
	result.Detail = domain.TruncateDetail(string(body))
	logger.Info("Dispatched %s to branch plant %s", key, branchPlant)
	return result, nil
}

// recordError writes an error row for the candidate; its own failure
// is batch-fatal and propagates.
func (o *DispatchOrchestrator) recordError(ctx context.Context, cand *domain.CandidateTransaction, key, detail string) error {
	return o.ledger.RecordOutcome(ctx, ledgerRecord(cand, key, domain.StatusError, detail))
}

func (o *DispatchOrchestrator) invalidateActivity(ctx context.Context, branchPlant string) {
	if o.cache == nil {
		return
	}
	key := o.gateway.ActivityCacheKey(branchPlant)
	if key == "" {
		return
	}
	if err := o.cache.Invalidate(ctx, key); err != nil {
		logger.Warn("Failed to invalidate activity cache for %s: %v", branchPlant, err)
	}
}

func ledgerRecord(cand *domain.CandidateTransaction, key string, status domain.Status, detail string) domain.DispatchRecord {
	return domain.DispatchRecord{
		UniqueTransactionID: key,
		ActionID:            cand.ActionID,
		IngredientID:        cand.IngredientID,
		LotID:               cand.LotID,
		VesselID:            cand.VesselID,
		VesselCode:          cand.VesselCode,
		IngredientName:      cand.IngredientName,
		Unit:                cand.Unit,
		Status:              status,
		StatusDetail:        domain.TruncateDetail(detail),
	}
}

// branchPlantFor routes an ingredient to its branch plant by name
// prefix.
func branchPlantFor(ingredientName string) string {
	for prefix, plant := range branchPlantRoutes {
		if strings.HasPrefix(ingredientName, prefix) {
			return plant
		}
	}
	return defaultBranchPlant
}

// dispatchErrorDetail prefers the destination's response body as the
// recorded detail so validation messages survive into the ledger.
func dispatchErrorDetail(err error) string {
	var apiErr *httpx.APIError
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		return string(apiErr.Body)
	}
	return err.Error()
}
