// ABOUTME: Two-phase extraction orchestrator: cheap event detection, then gated parallel specialists.
// ABOUTME: Specialist failures and timeouts fold into notes; surviving tasks still contribute.

package extract

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389-research/arbiter/engine"
)

const defaultTaskDeadline = 45 * time.Second

// StateExtractionOrchestrator runs the detector, dispatches the specialist
// extractors the detected event classes call for, awaits them all, and
// merges their results deterministically.
type StateExtractionOrchestrator struct {
	detector EventDetector
	combat   CombatExtractor
	resource ResourceExtractor
	effect   EffectExtractor

	taskDeadline time.Duration
}

// OrchestratorOption configures a StateExtractionOrchestrator.
type OrchestratorOption func(*StateExtractionOrchestrator)

// WithTaskDeadline sets the per-task deadline applied to each agent call.
// There is no global timeout; callers impose one through ctx.
func WithTaskDeadline(d time.Duration) OrchestratorOption {
	return func(o *StateExtractionOrchestrator) {
		o.taskDeadline = d
	}
}

// NewStateExtractionOrchestrator wires the four agents together.
func NewStateExtractionOrchestrator(detector EventDetector, combat CombatExtractor, resource ResourceExtractor, effect EffectExtractor, opts ...OrchestratorOption) *StateExtractionOrchestrator {
	o := &StateExtractionOrchestrator{
		detector:     detector,
		combat:       combat,
		resource:     resource,
		effect:       effect,
		taskDeadline: defaultTaskDeadline,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract runs the two-phase pipeline over the extractor narrative. The
// snapshot is required only for effect extraction; without one, an
// EFFECT_APPLIED detection is skipped and noted.
func (o *StateExtractionOrchestrator) Extract(ctx context.Context, narrativeXML string, gameContext map[string]string, snap *engine.Snapshot) ExtractionResult {
	var notes []string

	// Phase 1: detection. A failed detector degrades to the empty set; the
	// failure surfaces in notes rather than aborting the run.
	detection, err := o.detect(ctx, narrativeXML, gameContext)
	if err != nil {
		log.Printf("component=extract action=detector_failed err=%v", err)
		notes = append(notes, fmt.Sprintf("event detection failed: %v", err))
		detection = EventDetectionResult{}
	} else {
		notes = append(notes, fmt.Sprintf("detected events: %v (confidence %.2f)", detection.DetectedEvents, detection.Confidence))
	}

	// Phase 2: gated parallel dispatch.
	var (
		wg sync.WaitGroup
		mu sync.Mutex

		combatRes   *CombatResult
		resourceRes *ResourceResult
		effectRes   *EffectResult
	)

	addNote := func(note string) {
		mu.Lock()
		notes = append(notes, note)
		mu.Unlock()
	}

	if detection.Has(EventHPChange) || detection.Has(EventStateChange) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, o.taskDeadline)
			defer cancel()

			res, err := o.combat.ExtractCombat(taskCtx, narrativeXML, gameContext)
			if err != nil {
				log.Printf("component=extract action=combat_failed err=%v", err)
				addNote(fmt.Sprintf("combat extraction failed: %v", err))
				return
			}
			mu.Lock()
			combatRes = &res
			mu.Unlock()
		}()
	}

	if detection.Has(EventResourceUsage) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, o.taskDeadline)
			defer cancel()

			res, err := o.resource.ExtractResources(taskCtx, narrativeXML, gameContext)
			if err != nil {
				log.Printf("component=extract action=resource_failed err=%v", err)
				addNote(fmt.Sprintf("resource extraction failed: %v", err))
				return
			}
			mu.Lock()
			resourceRes = &res
			mu.Unlock()
		}()
	}

	if detection.Has(EventEffectApplied) {
		if snap == nil {
			notes = append(notes, "effect extraction skipped: no snapshot available")
		} else {
			effectContext := engine.EffectAgentContextBuilder{}.Build(*snap, gameContext)
			wg.Add(1)
			go func() {
				defer wg.Done()
				taskCtx, cancel := context.WithTimeout(ctx, o.taskDeadline)
				defer cancel()

				res, err := o.effect.ExtractEffects(taskCtx, effectContext)
				if err != nil {
					log.Printf("component=extract action=effect_failed err=%v", err)
					addNote(fmt.Sprintf("effect extraction failed: %v", err))
					return
				}
				mu.Lock()
				effectRes = &res
				mu.Unlock()
			}()
		}
	}

	wg.Wait()

	// Phase 3: deterministic merge.
	return mergeResults(combatRes, resourceRes, effectRes, notes)
}

func (o *StateExtractionOrchestrator) detect(ctx context.Context, narrativeXML string, gameContext map[string]string) (EventDetectionResult, error) {
	taskCtx, cancel := context.WithTimeout(ctx, o.taskDeadline)
	defer cancel()
	return o.detector.DetectEvents(taskCtx, narrativeXML, gameContext)
}
