package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/iurnickita/abetos/internal/handler/render"
	"github.com/iurnickita/abetos/internal/rules"
	"github.com/iurnickita/abetos/internal/service"
)

func (h *handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.ListRewards(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rewardsJSON := make([]RewardJSON, 0, len(rewards))
	for _, reward := range rewards {
		rewardsJSON = append(rewardsJSON, RewardJSON{
			ID:             reward.ID,
			Title:          reward.Title,
			RequiredPoints: reward.RequiredPoints,
			ValidFrom:      reward.ValidFrom,
			ValidTo:        reward.ValidTo,
			Stock:          reward.Stock,
		})
	}
	render.JSON(w, http.StatusOK, rewardsJSON)
}

func (h *handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rulesJSON := make([]RuleJSON, 0, len(list))
	for _, rule := range list {
		rulesJSON = append(rulesJSON, RuleJSON{
			ID:            rule.ID,
			ProductCode:   rule.ProductCode,
			Unit:          rule.Unit,
			PointsPerUnit: rule.PointsPerUnit,
			IsActive:      rule.IsActive,
		})
	}
	render.JSON(w, http.StatusOK, rulesJSON)
}

// PostSeedRules заполняет правила. Пустое тело - правила по умолчанию.
func (h *handler) PostSeedRules(w http.ResponseWriter, r *http.Request) {
	var seeds []service.RuleSeed
	found, err := decodeOptional(r, &seeds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		seeds = service.RuleSeeds(rules.DefaultRules)
	}

	report, err := h.service.SeedRules(r.Context(), seeds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, seedJSON(report))
}

// PostSeedRewards заполняет каталог наград. Пустое тело - демонстрационный каталог.
func (h *handler) PostSeedRewards(w http.ResponseWriter, r *http.Request) {
	var seeds []service.RewardSeed
	found, err := decodeOptional(r, &seeds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		seeds = service.DefaultRewards(h.now())
	}

	report, err := h.service.SeedRewards(r.Context(), seeds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, seedJSON(report))
}

func (h *handler) PostRepairMemberNumbers(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.service.RepairMemberNumbers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"ok": true, "repaired": repaired})
}

func seedJSON(report service.SeedReport) map[string]any {
	errs := report.Errors
	if errs == nil {
		errs = []string{}
	}
	return map[string]any{
		"ok":      true,
		"created": report.Created,
		"updated": report.Updated,
		"errors":  errs,
	}
}

// decodeOptional разбирает JSON тела, если оно не пустое.
func decodeOptional(r *http.Request, v any) (bool, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false, errors.Join(service.ErrInvalidInput, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return false, nil
	}
	if err = json.Unmarshal(body, v); err != nil {
		return false, errors.Join(service.ErrInvalidInput, err)
	}
	return true, nil
}
