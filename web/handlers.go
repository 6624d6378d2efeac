// ABOUTME: HTTP handlers translating JSON requests into engine operations and back.
// ABOUTME: Extraction commands serialize as tagged objects so appliers can dispatch on type.

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/extract"
)

type declarationDTO struct {
	Speaker         string `json:"speaker"`
	Content         string `json:"content"`
	ActiveCharacter string `json:"active_character,omitempty"`
}

type messageDTO struct {
	Content string `json:"content"`
	Speaker string `json:"speaker"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": s.engine.SessionID(),
	})
}

func (s *Server) handleStartTurns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Declarations []declarationDTO `json:"declarations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	decls := make([]engine.ActionDeclaration, 0, len(body.Declarations))
	for _, d := range body.Declarations {
		decls = append(decls, engine.ActionDeclaration{
			Speaker:         engine.Speaker(d.Speaker),
			Content:         d.Content,
			ActiveCharacter: d.ActiveCharacter,
		})
	}

	ids, err := s.engine.StartAndQueueTurns(decls)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"turn_ids": ids})
}

func (s *Server) handleAppendMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []messageDTO `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	inputs := make([]engine.MessageInput, 0, len(body.Messages))
	for _, m := range body.Messages {
		inputs = append(inputs, engine.MessageInput{
			Content: m.Content,
			Speaker: engine.Speaker(m.Speaker),
		})
	}

	if err := s.engine.AppendMessages(inputs); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNoActiveTurn) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.EndTurn(r.Context())
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNoActiveTurn) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"turn_id":             result.TurnID,
		"turn_level":          result.TurnLevel,
		"embedded_in_parent":  result.EmbeddedInParent,
		"advanced_to_sibling": result.AdvancedToSibling,
		"condensation_result": result.CondensationResult,
	})
}

func (s *Server) handleCurrentTurn(w http.ResponseWriter, r *http.Request) {
	turn := s.engine.CurrentTurn()
	if turn == nil {
		writeError(w, http.StatusNotFound, "no active turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"turn_id":          turn.TurnID,
		"turn_level":       turn.TurnLevel,
		"active_character": turn.ActiveCharacter,
		"cause":            turn.Cause,
		"item_count":       len(turn.Items),
		"cached_rules":     len(turn.RulesCache),
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap.IsEmpty() {
		writeError(w, http.StatusNotFound, "no active turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dm_context":        engine.DMContextBuilder{}.Build(snap),
		"extractor_context": engine.StateExtractorContextBuilder{}.Build(snap),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GameContext map[string]string `json:"game_context"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	result := s.engine.ExtractStateChanges(r.Context(), body.GameContext)
	writeJSON(w, http.StatusOK, extractionResultDTO(result))
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GameContext map[string]string `json:"game_context"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	result, err := s.engine.Narrate(r.Context(), body.GameContext)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, engine.ErrNoActiveTurn) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"narration":   result.Narration,
		"tool_rounds": result.ToolRounds,
		"extraction":  extractionResultDTO(result.Extraction),
	})
}

func (s *Server) handleRulesSearch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "rules database is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 5)
	filterType := r.URL.Query().Get("type")

	entries, err := s.store.Search(query, limit, filterType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		results = append(results, map[string]any{
			"name":         e.Name,
			"source":       e.Source,
			"type":         e.Type,
			"level":        e.Level,
			"school":       e.School,
			"rarity":       e.Rarity,
			"content":      e.Content,
			"content_html": RenderMarkdown(e.Content),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// extractionResultDTO serializes the merged result. Commands become tagged
// objects so JSON consumers can dispatch without reflection.
func extractionResultDTO(result extract.ExtractionResult) map[string]any {
	commands := make([]map[string]any, 0, len(result.Commands))
	for _, cmd := range result.Commands {
		commands = append(commands, commandDTO(cmd))
	}
	return map[string]any{
		"commands":       commands,
		"new_characters": result.NewCharacters,
		"combat_info":    result.CombatInfo,
		"notes":          result.Notes,
	}
}

func commandDTO(cmd extract.Command) map[string]any {
	switch c := cmd.(type) {
	case extract.HPChange:
		return map[string]any{"type": "hp_change", "character_id": c.CharacterID, "delta": c.Delta, "damage_type": c.DamageType, "is_temp_hp": c.IsTempHP}
	case extract.ConditionChange:
		return map[string]any{"type": "condition_change", "character_id": c.CharacterID, "action": c.Action, "condition_name": c.ConditionName}
	case extract.EffectChange:
		return map[string]any{"type": "effect_change", "character_id": c.CharacterID, "action": c.Action, "effect_name": c.EffectName, "duration": c.Duration}
	case extract.SpellSlotChange:
		return map[string]any{"type": "spell_slot_change", "character_id": c.CharacterID, "level": c.Level, "action": c.Action, "count": c.Count}
	case extract.HitDiceChange:
		return map[string]any{"type": "hit_dice_change", "character_id": c.CharacterID, "action": c.Action, "count": c.Count}
	case extract.ItemChange:
		return map[string]any{"type": "item_change", "character_id": c.CharacterID, "action": c.Action, "item_name": c.ItemName, "quantity": c.Quantity}
	case extract.DeathSaveChange:
		return map[string]any{"type": "death_save_change", "character_id": c.CharacterID, "result": c.Result, "count": c.Count}
	case extract.NewCharacter:
		return map[string]any{"type": "new_character", "character_id": c.Identifier, "kind": c.Kind, "basic_stats": c.BasicStats}
	default:
		return map[string]any{"type": "unknown", "character_id": cmd.Character()}
	}
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n := 0
	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return fallback
		}
		n = n*10 + int(ch-'0')
	}
	if n < 1 || n > 25 {
		return fallback
	}
	return n
}
